package engine

import "fmt"

// State is the lifecycle position of a Session.
type State int

const (
	StateUninitialized State = iota
	StateStarted
	StateAwaitingChoice
	StateGenerating
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarted:
		return "started"
	case StateAwaitingChoice:
		return "awaiting_choice"
	case StateGenerating:
		return "generating"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for candidate := StateUninitialized; candidate <= StateFaulted; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}
