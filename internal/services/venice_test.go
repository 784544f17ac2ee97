package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/fabler/pkg/chat"
)

func TestNewVeniceService(t *testing.T) {
	apiKey := "test-api-key"
	modelName := "test-model"

	service := NewVeniceService(apiKey, modelName)

	if service.apiKey != apiKey {
		t.Errorf("Expected apiKey %s, got %s", apiKey, service.apiKey)
	}

	if service.modelName != modelName {
		t.Errorf("Expected modelName %s, got %s", modelName, service.modelName)
	}

	if service.baseURL != veniceBaseURL {
		t.Errorf("Expected baseURL %s, got %s", veniceBaseURL, service.baseURL)
	}

	if service.httpClient == nil {
		t.Error("Expected httpClient to be initialized")
	}
}

func TestVeniceService_Chat(t *testing.T) {
	var seen VeniceChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"model": "venice-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "A storm gathers."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`)
	}))
	defer srv.Close()

	service := NewVeniceService("test-key", "venice-test").WithBaseURL(srv.URL + "/")
	resp, err := service.Chat(context.Background(), []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: "Narrate."},
		{Role: chat.ChatRoleUser, Content: "look around"},
	})
	require.NoError(t, err)

	assert.Equal(t, "A storm gathers.", resp.Message)
	assert.Equal(t, "venice-test", resp.Model)
	assert.Equal(t, chat.Usage{InputTokens: 12, OutputTokens: 5, TotalTokens: 17}, resp.Usage)

	// system messages pass through unchanged on OpenAI-compatible endpoints
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, chat.ChatRoleSystem, seen.Messages[0].Role)
	assert.False(t, seen.VeniceParameters.IncludeVeniceSystemPrompt)
}

func TestVeniceService_ChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	service := NewVeniceService("test-key", "venice-test").WithBaseURL(srv.URL)
	_, err := service.Chat(context.Background(), []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "hi"}})
	require.Error(t, err)
	_, classified := chat.ReasonFor(err)
	assert.False(t, classified)
}

func TestVeniceText_Classification(t *testing.T) {
	choice := func(content, finish string) VeniceChatChoice {
		c := VeniceChatChoice{FinishReason: finish}
		c.Message.Role = chat.ChatRoleAgent
		c.Message.Content = content
		return c
	}

	tests := []struct {
		name   string
		resp   VeniceChatResponse
		reason chat.Reason
	}{
		{name: "no choices", resp: VeniceChatResponse{}, reason: chat.ReasonNoCandidates},
		{name: "content filter", resp: VeniceChatResponse{Choices: []VeniceChatChoice{choice("", "content_filter")}}, reason: chat.ReasonSafetyBlocked},
		{name: "empty content", resp: VeniceChatResponse{Choices: []VeniceChatChoice{choice("   ", "stop")}}, reason: chat.ReasonNoText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := veniceText(&tt.resp)
			reason, ok := chat.ReasonFor(err)
			require.True(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}
