package engine

import (
	"context"

	"github.com/google/uuid"
)

// Notifier is told about turn progress. Delivery is best effort: errors are
// logged and never fail a turn. *events.Broadcaster implements it.
type Notifier interface {
	TurnStarted(ctx context.Context, sessionID uuid.UUID, kind string) error
	TurnCompleted(ctx context.Context, sessionID uuid.UUID, turn, choices int) error
	TurnFailed(ctx context.Context, sessionID uuid.UUID, reason string) error
	WorldUpdated(ctx context.Context, sessionID uuid.UUID, characters, locations int) error
}

type nopNotifier struct{}

func (nopNotifier) TurnStarted(context.Context, uuid.UUID, string) error     { return nil }
func (nopNotifier) TurnCompleted(context.Context, uuid.UUID, int, int) error { return nil }
func (nopNotifier) TurnFailed(context.Context, uuid.UUID, string) error      { return nil }
func (nopNotifier) WorldUpdated(context.Context, uuid.UUID, int, int) error  { return nil }

func (s *Session) notify(err error) {
	if err != nil {
		s.logger.Debug("Notification not delivered", "error", err)
	}
}
