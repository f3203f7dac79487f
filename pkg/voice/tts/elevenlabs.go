package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dostvoice/relay/pkg/voice/audio"
)

const (
	elevenLabsWSBase        = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"
	defaultElevenLabsModel  = "eleven_multilingual_v2"
	elevenLabsWriteTimeout  = 5 * time.Second
	elevenLabsChunkCapacity = 32
)

// ElevenLabsProvider implements the TTS Provider interface over ElevenLabs'
// streaming-input websocket. Audio arrives as a push stream of chunks.
type ElevenLabsProvider struct {
	apiKey    string
	wsBaseURL string
	dialer    *websocket.Dialer
}

// NewElevenLabs creates a new ElevenLabs TTS provider.
func NewElevenLabs(apiKey string) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		apiKey:    strings.TrimSpace(apiKey),
		wsBaseURL: elevenLabsWSBase,
		dialer:    websocket.DefaultDialer,
	}
}

// WithWSBaseURL overrides the websocket endpoint template. Used in tests.
func (e *ElevenLabsProvider) WithWSBaseURL(base string) *ElevenLabsProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		e.wsBaseURL = base
	}
	return e
}

// Name returns the provider identifier.
func (e *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

// Synthesize streams text through the stream-input websocket and returns the
// audio as a normalized stream.
func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (audio.Stream, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	voiceID := strings.TrimSpace(opts.Voice)
	if voiceID == "" {
		return nil, fmt.Errorf("voice id is required")
	}
	model := opts.Model
	if model == "" {
		model = defaultElevenLabsModel
	}

	wsURL, err := buildElevenLabsWSURL(e.wsBaseURL, voiceID, model)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	conn, resp, err := e.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("elevenlabs unauthorized: %w", err)
		}
		return nil, fmt.Errorf("elevenlabs dial: %w", err)
	}

	write := func(payload map[string]any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(elevenLabsWriteTimeout))
		return conn.WriteJSON(payload)
	}

	// Stream-input protocol: a keepalive space opens the context, the text
	// follows with a flush, and an empty message closes input.
	if err := write(map[string]any{"text": " ", "voice_id": voiceID}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("elevenlabs open stream: %w", err)
	}
	body := text
	if body != "" && !strings.HasSuffix(body, " ") {
		body += " "
	}
	if err := write(map[string]any{"text": body, "flush": true}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("elevenlabs send text: %w", err)
	}
	if err := write(map[string]any{"text": ""}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("elevenlabs close input: %w", err)
	}

	chunks := make(chan []byte, elevenLabsChunkCapacity)
	stopped := make(chan struct{})
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			close(stopped)
			_ = conn.Close()
		})
	}

	// synthErr is written before chunks is closed and read only after it is
	// drained, so the channel close orders the accesses.
	var synthErr error

	go func() {
		defer close(chunks)
		defer stop()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-stopped:
				case <-ctx.Done():
					synthErr = ctx.Err()
				default:
					if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
						synthErr = fmt.Errorf("elevenlabs stream: %w", err)
					}
				}
				return
			}

			var msg elevenLabsStreamMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg.Error != "" {
				synthErr = fmt.Errorf("elevenlabs: %s", msg.Error)
				return
			}
			if msg.Audio != "" {
				chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
				if err == nil && len(chunk) > 0 {
					select {
					case chunks <- chunk:
					case <-stopped:
						return
					}
				}
			}
			if msg.IsFinal || msg.Final {
				return
			}
		}
	}()

	return audio.FromChunks(chunks, func() error { return synthErr }, stop), nil
}

type elevenLabsStreamMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Final   bool   `json:"is_final"`
	Error   string `json:"error"`
}

func buildElevenLabsWSURL(base, voiceID, model string) (string, error) {
	if strings.TrimSpace(base) == "" {
		base = elevenLabsWSBase
	}
	base = strings.ReplaceAll(base, "{voice_id}", url.PathEscape(voiceID))
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("elevenlabs ws url: %w", err)
	}
	q := u.Query()
	q.Set("model_id", model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
