package chat

const (
	ChatRoleUser   = "user"      // Player turn
	ChatRoleAgent  = "assistant" // Narrator
	ChatRoleSystem = "system"    // Instruction anchor
)

// ChatMessage represents a single role-tagged message in the conversation
// sent to the generator.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage holds the token counts a provider reported for one call.
type Usage struct {
	InputTokens    int `json:"input_tokens"`
	OutputTokens   int `json:"output_tokens"`
	TotalTokens    int `json:"total_tokens"`
	ThoughtsTokens int `json:"thoughts_tokens,omitempty"`
}

// ChatResponse is the text a provider generated for a message sequence.
type ChatResponse struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
	Usage   Usage  `json:"usage"`
}

// Count returns the number of messages with the given role.
func Count(messages []ChatMessage, role string) int {
	n := 0
	for _, m := range messages {
		if m.Role == role {
			n++
		}
	}
	return n
}
