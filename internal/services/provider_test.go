package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/fabler/internal/config"
)

func TestNewLLMService(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		cfg     config.Config
		want    any
		wantErr bool
	}{
		{name: "anthropic", cfg: config.Config{LLMProvider: config.ProviderAnthropic, AnthropicAPIKey: "k"}, want: &AnthropicService{}},
		{name: "anthropic without key", cfg: config.Config{LLMProvider: config.ProviderAnthropic}, wantErr: true},
		{name: "venice", cfg: config.Config{LLMProvider: config.ProviderVenice, VeniceAPIKey: "k"}, want: &VeniceService{}},
		{name: "venice without key", cfg: config.Config{LLMProvider: config.ProviderVenice}, wantErr: true},
		{name: "ollama", cfg: config.Config{LLMProvider: config.ProviderOllama, OllamaURL: "http://localhost:11434"}, want: &OllamaService{}},
		{name: "mock", cfg: config.Config{LLMProvider: config.ProviderMock}, want: &MockLLMAPI{}},
		{name: "gemini without key", cfg: config.Config{LLMProvider: config.ProviderGemini}, wantErr: true},
		{name: "unknown", cfg: config.Config{LLMProvider: "hal"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewLLMService(context.Background(), &tt.cfg, "", logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, svc)
		})
	}
}
