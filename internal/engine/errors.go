package engine

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/fabler/pkg/chat"
)

var (
	ErrTurnInFlight  = errors.New("a turn is already being generated")
	ErrInvalidState  = errors.New("operation not valid in the current state")
	ErrEmptyChoice   = errors.New("choice text is empty")
	ErrLoadFailed    = errors.New("failed to load session")
	ErrTurnFailed    = errors.New("turn failed")
	ErrSessionClosed = errors.New("session is closed")
)

// Kind says which stage of a turn failed.
type Kind string

const (
	// KindGeneration means the generator never produced text.
	KindGeneration Kind = "generation"
	// KindContract means the generator kept replying without four choices.
	KindContract Kind = "contract"
)

// TurnError is returned when a turn could not be completed. It matches
// ErrTurnFailed with errors.Is. Reason is only set for generation failures.
type TurnError struct {
	Kind     Kind
	Reason   chat.Reason
	Attempts int
	Err      error
}

func (e *TurnError) Error() string {
	switch {
	case e.Kind == KindContract:
		return fmt.Sprintf("turn failed (%s): no reply carried the expected choices after %d attempt(s)", e.Kind, e.Attempts)
	case e.Err == nil:
		return fmt.Sprintf("turn failed (%s): %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("turn failed (%s): %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *TurnError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTurnFailed}
	}
	return []error{ErrTurnFailed, e.Err}
}
