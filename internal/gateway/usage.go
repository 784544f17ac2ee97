package gateway

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jwebster45206/fabler/pkg/chat"
)

// Per million tokens, USD.
const (
	inputCostPerMillion  = 0.125
	outputCostPerMillion = 0.375
)

// Counts accumulates usage for a set of calls.
type Counts struct {
	Calls          int `json:"calls"`
	InputTokens    int `json:"input_tokens"`
	OutputTokens   int `json:"output_tokens"`
	TotalTokens    int `json:"total_tokens"`
	ThoughtsTokens int `json:"thoughts_tokens"`
}

func (c *Counts) add(u chat.Usage) {
	c.Calls++
	c.InputTokens += u.InputTokens
	c.OutputTokens += u.OutputTokens
	c.TotalTokens += u.TotalTokens
	c.ThoughtsTokens += u.ThoughtsTokens
}

// UsageSnapshot is a point-in-time copy of the tracker.
type UsageSnapshot struct {
	Total     Counts             `json:"total"`
	ByPurpose map[Purpose]Counts `json:"by_purpose"`
}

// EstimatedCost prices the snapshot in USD.
func (s UsageSnapshot) EstimatedCost() float64 {
	return float64(s.Total.InputTokens)/1e6*inputCostPerMillion +
		float64(s.Total.OutputTokens)/1e6*outputCostPerMillion
}

// UsageTracker counts tokens per purpose. It is safe for concurrent use and
// a nil tracker ignores every call.
type UsageTracker struct {
	mu        sync.Mutex
	total     Counts
	byPurpose map[Purpose]Counts
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{byPurpose: make(map[Purpose]Counts)}
}

// Record adds one successful call.
func (t *UsageTracker) Record(purpose Purpose, u chat.Usage) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total.add(u)
	c := t.byPurpose[purpose]
	c.add(u)
	t.byPurpose[purpose] = c
}

// Snapshot copies the current counts.
func (t *UsageTracker) Snapshot() UsageSnapshot {
	s := UsageSnapshot{ByPurpose: make(map[Purpose]Counts)}
	if t == nil {
		return s
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s.Total = t.total
	for p, c := range t.byPurpose {
		s.ByPurpose[p] = c
	}
	return s
}

// Summary renders the session totals on one line.
func (t *UsageTracker) Summary() string {
	s := t.Snapshot()
	return fmt.Sprintf("%d calls, %d tokens (%d in, %d out, %d thinking), ~$%.4f",
		s.Total.Calls, s.Total.TotalTokens, s.Total.InputTokens, s.Total.OutputTokens,
		s.Total.ThoughtsTokens, s.EstimatedCost())
}

// LogSummary writes the totals and the per-purpose split.
func (t *UsageTracker) LogSummary(logger *slog.Logger) {
	s := t.Snapshot()
	logger.Info("Token usage",
		"calls", s.Total.Calls,
		"input_tokens", s.Total.InputTokens,
		"output_tokens", s.Total.OutputTokens,
		"total_tokens", s.Total.TotalTokens,
		"thoughts_tokens", s.Total.ThoughtsTokens,
		"estimated_cost_usd", s.EstimatedCost())
	for p, c := range s.ByPurpose {
		logger.Info("Token usage by purpose", "purpose", p, "calls", c.Calls, "total_tokens", c.TotalTokens)
	}
}
