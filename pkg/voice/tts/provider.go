// Package tts provides text-to-speech provider contracts.
package tts

import (
	"context"

	"github.com/dostvoice/relay/pkg/voice/audio"
)

// Provider is the interface for text-to-speech services. Implementations
// return audio in whatever shape their transport produces; the audio.Stream
// contract normalizes it for delivery.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to an audio stream.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (audio.Stream, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice string // Concrete provider voice identifier
	Model string // Model/quality selector; provider default when empty
}
