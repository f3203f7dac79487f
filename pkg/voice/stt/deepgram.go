package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const deepgramBaseURL = "https://api.deepgram.com/v1"

// DeepgramProvider implements the STT Provider interface using Deepgram's
// prerecorded transcription API.
type DeepgramProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewDeepgram creates a new Deepgram STT provider.
func NewDeepgram(apiKey string) *DeepgramProvider {
	return NewDeepgramWithClient(apiKey, nil)
}

// NewDeepgramWithClient creates a new Deepgram STT provider with a custom
// HTTP client.
func NewDeepgramWithClient(apiKey string, client *http.Client) *DeepgramProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &DeepgramProvider{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: client,
		baseURL:    deepgramBaseURL,
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func (d *DeepgramProvider) WithBaseURL(base string) *DeepgramProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		d.baseURL = strings.TrimSuffix(base, "/")
	}
	return d
}

// Name returns the provider identifier.
func (d *DeepgramProvider) Name() string {
	return "deepgram"
}

// Transcribe converts audio to text via Deepgram's /listen endpoint.
func (d *DeepgramProvider) Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key is required")
	}

	reqURL, err := d.buildURL(opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, audio)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	mediaType := opts.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", mediaType)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("deepgram error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dgResp deepgramListenResponse
	if err := json.NewDecoder(resp.Body).Decode(&dgResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return dgResp.transcript(), nil
}

func (d *DeepgramProvider) buildURL(opts TranscribeOptions) (string, error) {
	u, err := url.Parse(d.baseURL + "/listen")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "nova-2"
	}

	q := u.Query()
	q.Set("model", model)
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	q.Set("punctuate", strconv.FormatBool(opts.Punctuate))
	q.Set("smart_format", strconv.FormatBool(opts.SmartFormat))
	q.Set("diarize", strconv.FormatBool(opts.Diarize))
	q.Set("utterances", strconv.FormatBool(opts.Utterances))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type deepgramListenResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// transcript extracts the first alternative of the first channel. Deepgram
// reports "no speech detected" as an empty transcript, not an error.
func (r *deepgramListenResponse) transcript() *Transcript {
	out := &Transcript{Duration: r.Metadata.Duration}
	if len(r.Results.Channels) == 0 {
		return out
	}
	alts := r.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return out
	}
	out.Text = alts[0].Transcript
	out.Confidence = alts[0].Confidence
	return out
}
