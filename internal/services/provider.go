package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/fabler/internal/config"
)

// NewLLMService builds the provider named by cfg.LLMProvider for modelName.
// An empty modelName selects the provider default.
func NewLLMService(ctx context.Context, cfg *config.Config, modelName string, logger *slog.Logger) (LLMService, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		svc, err := NewGeminiService(ctx, cfg.GeminiAPIKey, modelName, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		return NewAnthropicService(cfg.AnthropicAPIKey, modelName, logger), nil
	case config.ProviderVenice:
		if cfg.VeniceAPIKey == "" {
			return nil, fmt.Errorf("venice API key is required")
		}
		return NewVeniceService(cfg.VeniceAPIKey, modelName), nil
	case config.ProviderOllama:
		return NewOllamaService(cfg.OllamaURL, modelName, logger), nil
	case config.ProviderMock:
		return NewMockLLMAPI(), nil
	default:
		return nil, fmt.Errorf("invalid LLM provider %q (supported: gemini, anthropic, venice, ollama, mock)", cfg.LLMProvider)
	}
}
