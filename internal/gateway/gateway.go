// Package gateway puts retry, truncation and failure classification in front
// of an LLM provider.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jwebster45206/fabler/internal/services"
	"github.com/jwebster45206/fabler/pkg/chat"
	"github.com/jwebster45206/fabler/pkg/state"
)

// Purpose labels a call for logging and usage accounting.
type Purpose string

const (
	PurposeStory    Purpose = "story_generation"
	PurposeEntities Purpose = "entity_extraction"
)

const (
	DefaultMaxAttempts    = 3
	DefaultMaxMessages    = 20
	DefaultKeepRecent     = 18
	DefaultAttemptTimeout = 45 * time.Second
	DefaultRetryDelay     = 1 * time.Second
	DefaultSafetyDelay    = 2 * time.Second

	worldContextHeader = "\n\nCONTEXTE ACTUEL: "
)

// Options tunes the retry and truncation policy. Zero values take defaults.
type Options struct {
	MaxAttempts    int
	MaxMessages    int
	KeepRecent     int
	AttemptTimeout time.Duration
	RetryDelay     time.Duration
	SafetyDelay    time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MaxMessages <= 0 {
		o.MaxMessages = DefaultMaxMessages
	}
	if o.KeepRecent <= 0 || o.KeepRecent >= o.MaxMessages {
		o.KeepRecent = o.MaxMessages - 2
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.SafetyDelay <= 0 {
		o.SafetyDelay = DefaultSafetyDelay
	}
	return o
}

// Result is a successful completion.
type Result struct {
	Text     string
	Model    string
	Usage    chat.Usage
	Attempts int
}

// Failure is returned once every attempt has failed or the caller gave up.
type Failure struct {
	Reason   chat.Reason
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s): %s: %v", f.Attempts, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ReasonOf returns the classification of a gateway error. Anything that is
// not a *Failure counts as UNKNOWN.
func ReasonOf(err error) chat.Reason {
	if err == nil {
		return chat.ReasonSuccess
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return chat.ReasonUnknown
}

// Gateway sends message sequences to one provider.
type Gateway struct {
	llm    services.LLMService
	opts   Options
	usage  *UsageTracker
	logger *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a gateway. A nil tracker disables usage accounting.
func New(llm services.LLMService, usage *UsageTracker, logger *slog.Logger, opts Options) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		llm:    llm,
		opts:   opts.withDefaults(),
		usage:  usage,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Usage returns the tracker shared by this gateway, if any.
func (g *Gateway) Usage() *UsageTracker {
	return g.usage
}

// Complete truncates the messages, then calls the provider until it returns
// text or the attempts run out. Cancelling ctx stops immediately.
func (g *Gateway) Complete(ctx context.Context, purpose Purpose, messages []chat.ChatMessage) (*Result, error) {
	if len(messages) == 0 {
		return nil, &Failure{Reason: chat.ReasonUnknown, Err: errors.New("no messages to send")}
	}
	sent := Truncate(messages, g.opts.MaxMessages, g.opts.KeepRecent)
	if len(sent) < len(messages) {
		g.logger.Debug("Truncated message history", "purpose", purpose, "from", len(messages), "to", len(sent))
	}

	var lastErr error
	lastReason := chat.ReasonUnknown
	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &Failure{Reason: chat.ReasonTransportError, Attempts: attempt - 1, Err: err}
		}

		resp, err := g.attempt(ctx, sent)
		if err == nil && resp != nil && strings.TrimSpace(resp.Message) != "" {
			g.usage.Record(purpose, resp.Usage)
			g.logger.Debug("Generation succeeded", "purpose", purpose, "attempt", attempt, "model", resp.Model)
			return &Result{
				Text:     resp.Message,
				Model:    resp.Model,
				Usage:    resp.Usage,
				Attempts: attempt,
			}, nil
		}

		lastReason, lastErr = classify(resp, err)
		if ctx.Err() != nil {
			// the caller gave up; the per-attempt deadline is not the cause
			return nil, &Failure{Reason: chat.ReasonTransportError, Attempts: attempt, Err: ctx.Err()}
		}
		g.logger.Warn("Generation attempt failed",
			"purpose", purpose,
			"attempt", attempt,
			"max_attempts", g.opts.MaxAttempts,
			"reason", lastReason,
			"error", lastErr)

		if attempt == g.opts.MaxAttempts {
			break
		}
		delay := g.opts.RetryDelay
		if lastReason == chat.ReasonSafetyBlocked {
			delay = g.opts.SafetyDelay
		}
		if err := g.sleep(ctx, delay); err != nil {
			return nil, &Failure{Reason: chat.ReasonTransportError, Attempts: attempt, Err: err}
		}
	}

	return nil, &Failure{Reason: lastReason, Attempts: g.opts.MaxAttempts, Err: lastErr}
}

// CompleteWithWorld is Complete with the world context appended to the first
// system message.
func (g *Gateway) CompleteWithWorld(ctx context.Context, purpose Purpose, messages []chat.ChatMessage, w *state.WorldModel) (*Result, error) {
	return g.Complete(ctx, purpose, WithWorldContext(messages, w))
}

// WithWorldContext returns a copy of messages whose first system message
// carries the world context block.
func WithWorldContext(messages []chat.ChatMessage, w *state.WorldModel) []chat.ChatMessage {
	out := make([]chat.ChatMessage, len(messages))
	copy(out, messages)
	if w == nil {
		return out
	}
	block := w.WorldContext()
	if block == "" {
		return out
	}
	for i := range out {
		if out[i].Role == chat.ChatRoleSystem {
			out[i].Content += worldContextHeader + block
			break
		}
	}
	return out
}

func (g *Gateway) attempt(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.opts.AttemptTimeout)
	defer cancel()
	return g.llm.Chat(attemptCtx, messages)
}

// Truncate keeps the first message plus the last keep messages when there
// are more than limit.
func Truncate(messages []chat.ChatMessage, limit, keep int) []chat.ChatMessage {
	if len(messages) <= limit || keep <= 0 {
		return messages
	}
	keep = min(keep, len(messages)-1)
	out := make([]chat.ChatMessage, 0, keep+1)
	out = append(out, messages[0])
	out = append(out, messages[len(messages)-keep:]...)
	return out
}

func classify(resp *chat.ChatResponse, err error) (chat.Reason, error) {
	switch {
	case err != nil:
		if reason, ok := chat.ReasonFor(err); ok {
			return reason, err
		}
		return chat.ReasonTransportError, err
	case resp == nil:
		return chat.ReasonUnknown, errors.New("provider returned no response")
	default:
		return chat.ReasonNoText, errors.New("provider returned empty text")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
