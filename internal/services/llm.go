package services

import (
	"context"

	"github.com/jwebster45206/fabler/pkg/chat"
)

// LLMService defines the interface for interacting with a text generator.
// Implementations return a *chat.ReasonError when a response arrived but held
// no usable text, and a plain error for transport and API failures.
type LLMService interface {
	// InitModel prepares the model on startup
	InitModel(ctx context.Context, modelName string) error

	// Chat generates a single reply for the message sequence
	Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
}

var (
	_ LLMService = (*GeminiService)(nil)
	_ LLMService = (*AnthropicService)(nil)
	_ LLMService = (*VeniceService)(nil)
	_ LLMService = (*OllamaService)(nil)
	_ LLMService = (*MockLLMAPI)(nil)
)
