// Package turn orchestrates one full voice turn: admission, transcription,
// session resolution, generation, synthesis.
package turn

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dostvoice/relay/pkg/gateway/apierror"
	"github.com/dostvoice/relay/pkg/gateway/sessions"
	"github.com/dostvoice/relay/pkg/voice/audio"
	"github.com/dostvoice/relay/pkg/voice/chat"
	"github.com/dostvoice/relay/pkg/voice/stt"
	"github.com/dostvoice/relay/pkg/voice/tts"
)

// Input is one turn request after transport decoding.
type Input struct {
	Audio           []byte
	MediaType       string
	Provider        string // synthesis provider selection; empty for default
	VoicePreference string
	SessionID       string // from the X-Session-Id header; empty for a new session
}

// Result is a completed turn ready for delivery.
type Result struct {
	SessionID  string
	Transcript string
	Reply      string
	Audio      audio.Stream
	Elapsed    time.Duration
}

// Pipeline drives the stages of a turn in strict sequence. Provider fields
// left nil mark the relay as degraded; turns then fail at admission before
// any external call.
type Pipeline struct {
	STT       stt.Provider
	Generator chat.Provider
	Synth     map[string]tts.Provider
	Default   string // name of the default synthesis provider

	Sessions *sessions.Store
	Logger   *slog.Logger

	MaxAudioBytes int64
	Language      string
}

var allowedMediaTypes = map[string]struct{}{
	"audio/wav":   {},
	"audio/mp3":   {},
	"audio/mpeg":  {},
	"audio/mp4":   {},
	"audio/ogg":   {},
	"audio/webm":  {},
	"audio/flac":  {},
	"audio/x-wav": {},
}

// Run executes one turn. Returned errors are always *apierror.Error carrying
// the resolved session id once stage 3 has passed.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := p.admit(in); err != nil {
		return nil, err
	}

	// Stage 2: transcription.
	transcript, err := p.transcribe(ctx, in)
	if err != nil {
		return nil, err
	}

	// Stage 3: session resolution. The turn is charged from here on.
	sess, err := p.Sessions.Resolve(ctx, in.SessionID)
	if err != nil {
		return nil, apierror.Classify(err, "")
	}
	count := p.Sessions.ChargeTurn(sess)
	logger.Info("turn admitted",
		"session_id", sess.ID,
		"message_count", count,
		"transcript_len", len(transcript),
	)

	// Stage 4: generation.
	reply, err := sess.Conversation.Send(ctx, transcript)
	if err != nil {
		return nil, apierror.Classify(err, sess.ID)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, apierror.Classify(errors.New("empty reply from generation provider"), sess.ID)
	}

	// Stage 5: synthesis.
	provider := p.synthProvider(in.Provider)
	stream, err := provider.Synthesize(ctx, reply, tts.SynthesizeOptions{
		Voice: tts.VoiceID(in.VoicePreference),
	})
	if err != nil {
		return nil, apierror.Classify(err, sess.ID)
	}

	p.Sessions.Touch(sess)

	elapsed := time.Since(start)
	logger.Info("turn completed",
		"session_id", sess.ID,
		"tts_provider", provider.Name(),
		"duration_ms", elapsed.Milliseconds(),
	)

	return &Result{
		SessionID:  sess.ID,
		Transcript: transcript,
		Reply:      reply,
		Audio:      stream,
		Elapsed:    elapsed,
	}, nil
}

// admit validates the payload and provider readiness before any external
// call is made or any session charged.
func (p *Pipeline) admit(in Input) error {
	// The default synthesis provider must itself be present: turns that name
	// no provider (or an unknown one) land on it.
	if p.STT == nil || p.Generator == nil || p.Synth[p.Default] == nil {
		return apierror.New(apierror.CodeServiceUnavailable, http.StatusServiceUnavailable,
			"Service temporarily unavailable. API clients not initialized.")
	}
	if len(in.Audio) == 0 {
		return apierror.New(apierror.CodeNoAudioFile, http.StatusBadRequest,
			"No audio file provided")
	}
	if p.MaxAudioBytes > 0 && int64(len(in.Audio)) > p.MaxAudioBytes {
		return apierror.New(apierror.CodeFileTooLarge, http.StatusBadRequest,
			"File too large. Maximum size is 25MB.")
	}
	if !recognizedAudioType(in.MediaType) {
		return apierror.New(apierror.CodeInvalidFileType, http.StatusBadRequest,
			"Only audio files are allowed.")
	}
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, in Input) (string, error) {
	tr, err := p.STT.Transcribe(ctx, bytes.NewReader(in.Audio), stt.TranscribeOptions{
		Language:    p.Language,
		MediaType:   in.MediaType,
		Punctuate:   true,
		SmartFormat: true,
		Utterances:  true,
	})
	if err != nil {
		return "", &apierror.Error{
			Code:    apierror.CodeSTTError,
			Status:  http.StatusInternalServerError,
			Message: "Speech recognition failed",
			Err:     err,
		}
	}
	transcript := strings.TrimSpace(tr.Text)
	if transcript == "" {
		// Unintelligible audio is a caller problem, not a provider fault.
		return "", apierror.New(apierror.CodeEmptyTranscription, http.StatusBadRequest,
			"Could not understand audio. Please try again.")
	}
	return transcript, nil
}

func (p *Pipeline) synthProvider(name string) tts.Provider {
	if prov, ok := p.Synth[strings.ToLower(strings.TrimSpace(name))]; ok {
		return prov
	}
	return p.Synth[p.Default]
}

func recognizedAudioType(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if semi := strings.Index(mt, ";"); semi >= 0 {
		mt = strings.TrimSpace(mt[:semi])
	}
	if _, ok := allowedMediaTypes[mt]; ok {
		return true
	}
	return strings.HasPrefix(mt, "audio/")
}
