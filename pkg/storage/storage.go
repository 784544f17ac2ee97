package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"
)

const MaxNameLength = 64

var (
	ErrNotFound    = errors.New("save not found")
	ErrInvalidName = errors.New("invalid save name")
)

// SaveInfo describes a stored session without its payload.
type SaveInfo struct {
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Storage persists serialized sessions under user-chosen names.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// SaveSession creates or overwrites a save
	SaveSession(ctx context.Context, name string, data []byte) error
	// LoadSession returns ErrNotFound when the name is unknown
	LoadSession(ctx context.Context, name string) ([]byte, error)
	// DeleteSession returns ErrNotFound when the name is unknown
	DeleteSession(ctx context.Context, name string) error
	// ListSessions returns saves sorted by name
	ListSessions(ctx context.Context) ([]SaveInfo, error)
}

// ValidateName accepts letters, digits, '-', '_' and inner spaces. Names
// double as file names and keys, so separators and dots are rejected.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len([]rune(name)) > MaxNameLength {
		return fmt.Errorf("%w: name is longer than %d characters", ErrInvalidName, MaxNameLength)
	}
	if name[0] == ' ' || name[len(name)-1] == ' ' {
		return fmt.Errorf("%w: name has leading or trailing spaces", ErrInvalidName)
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == ' ' {
			continue
		}
		return fmt.Errorf("%w: character %q is not allowed", ErrInvalidName, r)
	}
	return nil
}
