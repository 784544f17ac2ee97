package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwebster45206/fabler/pkg/chat"
)

func TestNewAnthropicService(t *testing.T) {
	apiKey := "test-api-key"
	modelName := "claude-3-sonnet-20240229"
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := NewAnthropicService(apiKey, modelName, log)

	if service.apiKey != apiKey {
		t.Errorf("Expected API key %s, got %s", apiKey, service.apiKey)
	}

	if service.modelName != modelName {
		t.Errorf("Expected model name %s, got %s", modelName, service.modelName)
	}

	if service.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
}

func TestAnthropicService_InitModel(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewAnthropicService("test-key", "claude-3-sonnet-20240229", log)

	err := service.InitModel(context.Background(), "test-model")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if service.modelName != "test-model" {
		t.Errorf("Expected model to switch to test-model, got %s", service.modelName)
	}
}

func TestAnthropicService_ExtractSystemMessage(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewAnthropicService("test-key", "claude-3-sonnet-20240229", log)

	tests := []struct {
		name                   string
		messages               []chat.ChatMessage
		expectedSystem         string
		expectedNonSystemCount int
	}{
		{
			name: "single system message",
			messages: []chat.ChatMessage{
				{Role: chat.ChatRoleSystem, Content: "You are a helpful assistant."},
				{Role: chat.ChatRoleUser, Content: "Hello"},
				{Role: chat.ChatRoleAgent, Content: "Hi there!"},
			},
			expectedSystem:         "You are a helpful assistant.",
			expectedNonSystemCount: 2,
		},
		{
			name: "multiple system messages",
			messages: []chat.ChatMessage{
				{Role: chat.ChatRoleSystem, Content: "You are a helpful assistant."},
				{Role: chat.ChatRoleUser, Content: "Hello"},
				{Role: chat.ChatRoleSystem, Content: "Be concise."},
				{Role: chat.ChatRoleAgent, Content: "Hi there!"},
			},
			expectedSystem:         "You are a helpful assistant.\n\nBe concise.",
			expectedNonSystemCount: 2,
		},
		{
			name: "no system messages",
			messages: []chat.ChatMessage{
				{Role: chat.ChatRoleUser, Content: "Hello"},
				{Role: chat.ChatRoleAgent, Content: "Hi there!"},
			},
			expectedSystem:         "",
			expectedNonSystemCount: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			systemPrompt, nonSystemMessages := service.splitChatMessages(tt.messages)

			if systemPrompt != tt.expectedSystem {
				t.Errorf("Expected system prompt '%s', got '%s'", tt.expectedSystem, systemPrompt)
			}

			if len(nonSystemMessages) != tt.expectedNonSystemCount {
				t.Errorf("Expected %d non-system messages, got %d", tt.expectedNonSystemCount, len(nonSystemMessages))
			}

			// Verify no system messages remain
			for _, msg := range nonSystemMessages {
				if msg.Role == chat.ChatRoleSystem {
					t.Error("Found system message in non-system messages")
				}
			}
		})
	}
}

func anthropicTestServer(t *testing.T, status int, body string, seen *AnthropicChatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("Expected path /messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header, got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("Expected anthropic-version %s, got %q", anthropicVersion, r.Header.Get("anthropic-version"))
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("Failed to decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicService_Chat(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen AnthropicChatRequest
	srv := anthropicTestServer(t, http.StatusOK, `{
		"id": "msg_01ABC123",
		"type": "message",
		"role": "assistant",
		"content": [{"type": "text", "text": "The door creaks.\n1. Enter\n2. Knock\n3. Leave\n4. Wait"}],
		"model": "claude-test",
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 20}
	}`, &seen)

	service := NewAnthropicService("test-key", "claude-test", log).WithBaseURL(srv.URL)
	resp, err := service.Chat(context.Background(), []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: "Narrate."},
		{Role: chat.ChatRoleUser, Content: "begin the adventure"},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if seen.System != "Narrate." {
		t.Errorf("Expected system prompt to be hoisted, got %q", seen.System)
	}
	if len(seen.Messages) != 1 || seen.Messages[0].Role != chat.ChatRoleUser {
		t.Errorf("Expected one user message on the wire, got %+v", seen.Messages)
	}
	if resp.Model != "claude-test" {
		t.Errorf("Expected model claude-test, got %s", resp.Model)
	}
	if resp.Usage.TotalTokens != 30 {
		t.Errorf("Expected 30 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if resp.Message == "" {
		t.Error("Expected message text")
	}
}

func TestAnthropicService_ChatHTTPError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := anthropicTestServer(t, http.StatusTooManyRequests, `{"error":{"type":"rate_limit_error","message":"slow down"}}`, nil)

	service := NewAnthropicService("test-key", "claude-test", log).WithBaseURL(srv.URL)
	_, err := service.Chat(context.Background(), []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("Expected error for non-200 status")
	}
	if _, ok := chat.ReasonFor(err); ok {
		t.Errorf("Expected an unclassified transport error, got %v", err)
	}
}

func TestAnthropicText_Classification(t *testing.T) {
	tests := []struct {
		name   string
		resp   AnthropicChatResponse
		reason chat.Reason
	}{
		{
			name:   "refusal",
			resp:   AnthropicChatResponse{StopReason: "refusal", Content: []AnthropicContentBlock{{Type: "text", Text: "no"}}},
			reason: chat.ReasonSafetyBlocked,
		},
		{
			name:   "no content",
			resp:   AnthropicChatResponse{StopReason: "end_turn"},
			reason: chat.ReasonNoContent,
		},
		{
			name:   "no text blocks",
			resp:   AnthropicChatResponse{Content: []AnthropicContentBlock{{Type: "tool_use"}}},
			reason: chat.ReasonNoParts,
		},
		{
			name:   "empty text",
			resp:   AnthropicChatResponse{Content: []AnthropicContentBlock{{Type: "text", Text: " "}}},
			reason: chat.ReasonNoText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := anthropicText(&tt.resp)
			reason, ok := chat.ReasonFor(err)
			if !ok {
				t.Fatalf("Expected classified error, got %v", err)
			}
			if reason != tt.reason {
				t.Errorf("Expected reason %s, got %s", tt.reason, reason)
			}
		})
	}
}
