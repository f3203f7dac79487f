// Package stt provides speech-to-text provider contracts.
package stt

import (
	"context"
	"io"
)

// Provider is the interface for speech-to-text services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts audio to text. A clip in which no speech was
	// detected yields an empty Transcript.Text and a nil error; hard
	// provider failures return an error.
	Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error)
}

// TranscribeOptions configures transcription.
type TranscribeOptions struct {
	Model       string // Provider-specific model
	Language    string // ISO language code
	MediaType   string // Audio media type hint (audio/webm, audio/wav, ...)
	Punctuate   bool   // Insert punctuation
	SmartFormat bool   // Provider-side formatting of dates, numbers, etc.
	Diarize     bool   // Speaker diarization
	Utterances  bool   // Utterance segmentation
}

// Transcript is the result of transcription.
type Transcript struct {
	Text       string  // Full transcribed text; empty when no speech detected
	Confidence float64 // Provider confidence, 0 when unavailable
	Duration   float64 // Audio duration in seconds, 0 when unavailable
}
