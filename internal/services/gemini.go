package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/jwebster45206/fabler/pkg/chat"
)

const (
	DefaultGeminiModel       = "gemini-2.5-flash"
	DefaultGeminiTemperature = 0.8
	DefaultGeminiMaxTokens   = 8192
)

// blockedFinishReasons are the finish reasons that mean the candidate was
// withheld by a content filter.
var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
}

// GeminiService implements LLMService for Google Gemini
type GeminiService struct {
	client    *genai.Client
	modelName string
	config    *genai.GenerateContentConfig
	logger    *slog.Logger
}

// NewGeminiService creates a Gemini API client. The API key is required.
func NewGeminiService(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiService{
		client:    client,
		modelName: modelName,
		config:    defaultGeminiConfig(),
		logger:    logger,
	}, nil
}

func defaultGeminiConfig() *genai.GenerateContentConfig {
	threshold := genai.HarmBlockThresholdBlockOnlyHigh
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](DefaultGeminiTemperature),
		MaxOutputTokens: DefaultGeminiMaxTokens,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: threshold},
			{Category: genai.HarmCategoryHateSpeech, Threshold: threshold},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: threshold},
			{Category: genai.HarmCategoryDangerousContent, Threshold: threshold},
		},
	}
}

// InitModel switches the model used for subsequent calls.
func (g *GeminiService) InitModel(ctx context.Context, modelName string) error {
	if modelName != "" {
		g.modelName = modelName
	}
	g.logger.Info("Using Gemini model", "model", g.modelName)
	return nil
}

// Chat sends the message sequence and classifies the reply.
func (g *GeminiService) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, toGeminiContents(messages), g.config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := geminiText(resp)
	if err != nil {
		g.logger.Warn("Gemini returned no usable text", "model", g.modelName, "error", err)
		return nil, err
	}

	model := g.modelName
	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}
	return &chat.ChatResponse{
		Message: text,
		Model:   model,
		Usage:   geminiUsage(resp),
	}, nil
}

// toGeminiContents maps chat roles onto the two roles the API accepts.
// System instructions travel as user turns.
func toGeminiContents(messages []chat.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == chat.ChatRoleAgent {
			role = genai.Role(genai.RoleModel)
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

// geminiText extracts the reply text or a *chat.ReasonError describing why
// there is none.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", chat.NewReasonError(chat.ReasonUnknown, "nil response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", chat.NewReasonError(chat.ReasonSafetyBlocked, "prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", chat.NewReasonError(chat.ReasonNoCandidates, "response has no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate == nil {
		return "", chat.NewReasonError(chat.ReasonNoCandidates, "first candidate is nil")
	}
	if blockedFinishReasons[string(candidate.FinishReason)] {
		return "", chat.NewReasonError(chat.ReasonSafetyBlocked, "finish reason %s", candidate.FinishReason)
	}
	if candidate.Content == nil {
		return "", chat.NewReasonError(chat.ReasonNoContent, "candidate has no content (finish reason %s)", candidate.FinishReason)
	}
	if len(candidate.Content.Parts) == 0 {
		return "", chat.NewReasonError(chat.ReasonNoParts, "candidate content has no parts")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", chat.NewReasonError(chat.ReasonNoText, "parts carry no text")
	}
	return text, nil
}

func geminiUsage(resp *genai.GenerateContentResponse) chat.Usage {
	u := resp.UsageMetadata
	if u == nil {
		return chat.Usage{}
	}
	return chat.Usage{
		InputTokens:    int(u.PromptTokenCount),
		OutputTokens:   int(u.CandidatesTokenCount),
		TotalTokens:    int(u.TotalTokenCount),
		ThoughtsTokens: int(u.ThoughtsTokenCount),
	}
}
