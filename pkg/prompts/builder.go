package prompts

import (
	"fmt"

	"github.com/jwebster45206/fabler/pkg/chat"
	"github.com/jwebster45206/fabler/pkg/state"
)

// DefaultHistoryLimit is the number of prior timeline events sent with a turn.
const DefaultHistoryLimit = 6

// Builder constructs chat messages for a turn using a fluent interface.
type Builder struct {
	world        *state.WorldModel
	userMessage  string
	historyLimit int
	messages     []chat.ChatMessage
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyLimit: DefaultHistoryLimit,
		messages:     make([]chat.ChatMessage, 0),
	}
}

// WithWorld sets the world the prompt is built from.
func (b *Builder) WithWorld(w *state.WorldModel) *Builder {
	b.world = w
	return b
}

// WithUserMessage sets the instruction for the new turn.
func (b *Builder) WithUserMessage(message string) *Builder {
	b.userMessage = message
	return b
}

// WithHistoryLimit sets the window of prior events.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// Build returns the system instruction, the windowed history and the user
// message, in that order.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.world == nil {
		return nil, fmt.Errorf("world is required")
	}
	if b.userMessage == "" {
		return nil, fmt.Errorf("user message is required")
	}

	b.messages = make([]chat.ChatMessage, 0, b.historyLimit+2)

	// 1. System instruction
	if err := b.addSystemInstruction(); err != nil {
		return nil, err
	}

	// 2. Windowed history
	b.addHistory()

	// 3. User message
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleUser,
		Content: b.userMessage,
	})

	return b.messages, nil
}

func (b *Builder) addSystemInstruction() error {
	for _, e := range b.world.Timeline {
		if e.IsSystem() {
			b.messages = append(b.messages, chat.ChatMessage{
				Role:    chat.ChatRoleSystem,
				Content: SystemInstruction(e.Descr, b.world.WorldSummary(true).String()),
			})
			return nil
		}
	}
	return fmt.Errorf("world has no system instruction event")
}

// addHistory appends the most recent user and narration events, oldest first.
func (b *Builder) addHistory() {
	if b.historyLimit <= 0 {
		return
	}
	var window []chat.ChatMessage
	for i := len(b.world.Timeline) - 1; i >= 0 && len(window) < b.historyLimit; i-- {
		e := b.world.Timeline[i]
		switch {
		case e.IsUser():
			window = append(window, chat.ChatMessage{Role: chat.ChatRoleUser, Content: e.Text()})
		case e.IsNarration():
			window = append(window, chat.ChatMessage{Role: chat.ChatRoleAgent, Content: e.Text()})
		}
	}
	for i := len(window) - 1; i >= 0; i-- {
		b.messages = append(b.messages, window[i])
	}
}

// BuildMessages is a convenience function for the common case.
func BuildMessages(w *state.WorldModel, message string, historyLimit int) ([]chat.ChatMessage, error) {
	return New().
		WithWorld(w).
		WithUserMessage(message).
		WithHistoryLimit(historyLimit).
		Build()
}
