package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/fabler/internal/engine"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeTurnStarted   EventType = "turn.started"
	EventTypeTurnCompleted EventType = "turn.completed"
	EventTypeTurnFailed    EventType = "turn.failed"
	EventTypeWorldUpdated  EventType = "world.updated"
)

// Event is the JSON payload published on a session channel.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Time      time.Time      `json:"time"`
	Data      map[string]any `json:"data,omitempty"`
}

// Broadcaster publishes session events to Redis Pub/Sub for SSE distribution.
// It satisfies engine.Notifier.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ engine.Notifier = (*Broadcaster)(nil)

func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Channel is the Pub/Sub channel carrying one session's events.
func Channel(sessionID uuid.UUID) string {
	return "game-events:" + sessionID.String()
}

func (b *Broadcaster) TurnStarted(ctx context.Context, sessionID uuid.UUID, kind string) error {
	return b.publish(ctx, sessionID, EventTypeTurnStarted, map[string]any{
		"kind": kind,
	})
}

func (b *Broadcaster) TurnCompleted(ctx context.Context, sessionID uuid.UUID, turn, choices int) error {
	return b.publish(ctx, sessionID, EventTypeTurnCompleted, map[string]any{
		"turn":    turn,
		"choices": choices,
	})
}

func (b *Broadcaster) TurnFailed(ctx context.Context, sessionID uuid.UUID, reason string) error {
	return b.publish(ctx, sessionID, EventTypeTurnFailed, map[string]any{
		"reason": reason,
	})
}

func (b *Broadcaster) WorldUpdated(ctx context.Context, sessionID uuid.UUID, characters, locations int) error {
	return b.publish(ctx, sessionID, EventTypeWorldUpdated, map[string]any{
		"characters": characters,
		"locations":  locations,
	})
}

// Subscribe opens a subscription on a session channel. The caller closes it.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(sessionID))
}

func (b *Broadcaster) publish(ctx context.Context, sessionID uuid.UUID, eventType EventType, data map[string]any) error {
	channel := Channel(sessionID)
	event := Event{
		Type:      eventType,
		SessionID: sessionID.String(),
		Time:      time.Now().UTC(),
		Data:      data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Warn("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published", "channel", channel, "event_type", eventType)
	return nil
}
