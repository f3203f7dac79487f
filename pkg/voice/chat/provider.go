// Package chat provides conversational generation provider contracts.
package chat

import "context"

// Message is one dialogue turn.
type Message struct {
	Role string // "system", "user" or "assistant"
	Text string
}

// Provider creates provider-backed conversations.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// NewConversation opens a conversation seeded with the provider's
	// system instruction. The provider-side session carries turn history,
	// so callers never resend it.
	NewConversation(ctx context.Context) (Conversation, error)
}

// Conversation is a resumable multi-turn dialogue.
type Conversation interface {
	// Send submits text as a user turn and returns the assistant reply.
	// Prior exchanges on this conversation are visible to the model.
	Send(ctx context.Context, text string) (string, error)

	// History returns the dialogue so far, starting with the seeded
	// system instruction.
	History() []Message
}
