package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dostvoice/relay/pkg/voice/audio"
)

const (
	cartesiaBaseURL      = "https://api.cartesia.ai"
	cartesiaVersion      = "2025-04-16"
	defaultCartesiaModel = "sonic-3"
)

// CartesiaProvider implements the TTS Provider interface using Cartesia's
// bytes endpoint. Audio arrives as a pull stream over the response body.
type CartesiaProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewCartesia creates a new Cartesia TTS provider.
func NewCartesia(apiKey string) *CartesiaProvider {
	return NewCartesiaWithClient(apiKey, nil)
}

// NewCartesiaWithClient creates a new Cartesia TTS provider with a custom
// HTTP client.
func NewCartesiaWithClient(apiKey string, client *http.Client) *CartesiaProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &CartesiaProvider{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: client,
		baseURL:    cartesiaBaseURL,
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func (c *CartesiaProvider) WithBaseURL(base string) *CartesiaProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		c.baseURL = strings.TrimSuffix(base, "/")
	}
	return c
}

// Name returns the provider identifier.
func (c *CartesiaProvider) Name() string {
	return "cartesia"
}

type cartesiaTTSRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoiceSpec    `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
	Language     string               `json:"language,omitempty"`
}

type cartesiaVoiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate"`
}

// Synthesize converts text to audio via Cartesia's /tts/bytes endpoint.
func (c *CartesiaProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (audio.Stream, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("cartesia api key is required")
	}

	model := opts.Model
	if model == "" {
		model = defaultCartesiaModel
	}

	body, err := json.Marshal(cartesiaTTSRequest{
		ModelID:    model,
		Transcript: text,
		Voice:      cartesiaVoiceSpec{Mode: "id", ID: opts.Voice},
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    128000,
		},
		Language: "hi",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia request: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// Body ownership moves to the stream; its Close releases the
		// connection.
		return audio.FromReader(resp.Body), nil
	case http.StatusNoContent:
		_ = resp.Body.Close()
		return audio.FromBuffer(nil), nil
	default:
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("cartesia error %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
}
