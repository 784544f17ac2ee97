package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jwebster45206/fabler/pkg/migrate"
	"github.com/jwebster45206/fabler/pkg/prompts"
	"github.com/jwebster45206/fabler/pkg/state"
)

// Save serializes the committed world model.
func (s *Session) Save() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpenLocked(); err != nil {
		return nil, err
	}
	if s.state == StateUninitialized {
		return nil, fmt.Errorf("%w: nothing to save before the game starts", ErrInvalidState)
	}
	data, err := json.Marshal(s.world)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal world: %w", err)
	}
	return data, nil
}

// Load replaces the world with a saved one. Older save shapes are migrated.
// On any failure the current world is left untouched.
func (s *Session) Load(data []byte) error {
	w, warnings, err := DecodeWorld(data, migrate.New(s.logger))
	if err != nil {
		return err
	}
	for _, warn := range warnings {
		s.logger.Warn("Loaded world has warnings", "warning", warn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if s.state == StateGenerating {
		return ErrTurnInFlight
	}
	s.abandonExtractionLocked()
	s.gen++
	s.world = w
	s.state = StateAwaitingChoice
	s.logger.Info("Session loaded", "hero", s.heroNameLocked(), "events", len(w.Timeline), "chapter", w.Chapter)
	return nil
}

// DecodeWorld reads a current-schema save, falling back to the legacy
// shapes. The result always carries a system instruction event.
func DecodeWorld(data []byte, m *migrate.Migrator) (*state.WorldModel, []string, error) {
	w, err := decodeStrict(data)
	if err != nil {
		legacy, lerr := m.Decode(data)
		if lerr != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrLoadFailed, errors.Join(err, lerr))
		}
		w = legacy
	}

	warnings, err := migrate.Check(w)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	ensureSystemEvent(w)
	return w, warnings, nil
}

// strictWorld has the fields of state.WorldModel without its lenient
// UnmarshalJSON, so unknown fields are rejected.
type strictWorld state.WorldModel

func decodeStrict(data []byte) (*state.WorldModel, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var sw strictWorld
	if err := dec.Decode(&sw); err != nil {
		return nil, fmt.Errorf("failed to decode world: %w", err)
	}
	w := state.WorldModel(sw)
	w.Normalize()
	if _, ok := w.Player(); !ok {
		return nil, fmt.Errorf("world has no main character")
	}
	return &w, nil
}

// ensureSystemEvent gives migrated worlds an instruction anchor so turns
// can be built from them.
func ensureSystemEvent(w *state.WorldModel) {
	for _, e := range w.Timeline {
		if e.IsSystem() {
			return
		}
	}
	hero, _ := w.Player()
	ts := 0
	if n := len(w.Timeline); n > 0 {
		ts = w.Timeline[n-1].Timestamp
	}
	w.AddEvent(state.Event{
		ID:        state.ImpactSystemMessage,
		Descr:     prompts.SystemOpener(hero.Name, "", ""),
		Timestamp: ts,
		Impact:    state.Impact{Type: state.ImpactSystemMessage},
	})
}
