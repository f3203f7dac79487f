package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// SystemInstruction fixes the assistant's persona, language and tone for
// every conversation.
const SystemInstruction = `You are a helpful and friendly AI assistant named 'Dost' (which means friend in Hindi).
You must reply ONLY in conversational Hindi using Devanagari script.
Keep your responses natural, warm, and conversational.
If asked about technical topics, explain them simply in Hindi.
Always be polite and helpful.`

const (
	defaultGeminiModel     = "gemini-1.5-flash"
	defaultTemperature     = 0.7
	defaultTopP            = 0.8
	defaultMaxOutputTokens = 1024
)

// GeminiProvider implements the generation Provider interface on the Google
// Gemini API. Conversations wrap provider-side chat sessions, which carry
// history across turns.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// GeminiOption configures a GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithModel sets the model ID. Default is gemini-1.5-flash.
func WithModel(model string) GeminiOption {
	return func(g *GeminiProvider) { g.model = model }
}

// NewGemini creates a new Gemini generation provider with the given API key.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	g := &GeminiProvider{
		client: gc,
		model:  defaultGeminiModel,
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// NewConversation opens a provider-side chat seeded with the system
// instruction.
func (g *GeminiProvider) NewConversation(ctx context.Context) (Conversation, error) {
	session, err := g.client.Chats.Create(ctx, g.model, GenerationConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini create chat: %w", err)
	}
	return &geminiConversation{
		session: session,
		history: []Message{{Role: "system", Text: SystemInstruction}},
	}, nil
}

// GenerationConfig returns the fixed generation parameters used for every
// conversation. Exported for testing.
func GenerationConfig() *genai.GenerateContentConfig {
	temp := float32(defaultTemperature)
	topP := float32(defaultTopP)
	return &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: defaultMaxOutputTokens,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: SystemInstruction}},
		},
	}
}

type geminiConversation struct {
	session *genai.Chat

	mu      sync.Mutex
	history []Message
}

func (c *geminiConversation) Send(ctx context.Context, text string) (string, error) {
	resp, err := c.session.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", fmt.Errorf("gemini send: %w", err)
	}
	reply := strings.TrimSpace(resp.Text())

	c.mu.Lock()
	c.history = append(c.history,
		Message{Role: "user", Text: text},
		Message{Role: "assistant", Text: reply},
	)
	c.mu.Unlock()

	return reply, nil
}

func (c *geminiConversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}
