// Package migrate converts legacy persisted sessions into a WorldModel and
// validates models before they are handed to a session.
package migrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jwebster45206/fabler/pkg/chat"
	"github.com/jwebster45206/fabler/pkg/state"
	"github.com/jwebster45206/fabler/pkg/textextract"
)

const (
	DefaultHeroName   = "Hero"
	CurrentLocationID = "current_location"

	descrLimit = 100
)

var (
	ErrInvalidWorld = errors.New("invalid world")
	ErrUnrecognized = errors.New("unrecognized save format")
)

var (
	heroKeys = []string{"hero_name", "heroName", "hero"}
	logKeys  = []string{"story_log", "storyLog", "messages", "history"}

	locationWords = []string{"lieu", "location", "endroit", "place", "ville", "village", "forêt", "château", "taverne", "cité"}
)

// Migrator builds WorldModels from older save shapes.
type Migrator struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{logger: logger}
}

// FromMessageLog converts a bare role/content message list. Every assistant
// message becomes one event.
func (m *Migrator) FromMessageLog(messages []chat.ChatMessage, heroName string) *state.WorldModel {
	if strings.TrimSpace(heroName) == "" {
		heroName = DefaultHeroName
	}
	w := seed(heroName, state.Location{
		ID:          CurrentLocationID,
		Name:        "Starting Location",
		Tags:        state.NewStringSet("unknown"),
		Description: "The place where the adventure begins",
	})

	turns := 0
	for _, msg := range messages {
		if msg.Role != chat.ChatRoleAgent {
			continue
		}
		turns++
		w.AddEvent(state.Event{
			ID:          fmt.Sprintf("turn_%d", turns),
			Descr:       textextract.FirstSentence(msg.Content, descrLimit),
			Timestamp:   turns,
			Impact:      state.Impact{Turn: turns},
			RawResponse: msg.Content,
		})
	}

	m.logger.Info("Migrated message log", "messages", len(messages), "turns", turns)
	return w
}

// LegacySave is the pre-world-model save file.
type LegacySave struct {
	HeroName   string
	StoryLog   []chat.ChatMessage
	WorldState map[string]string
}

// ParseLegacySave reads a legacy save object, accepting several key spellings.
func ParseLegacySave(raw map[string]json.RawMessage) (LegacySave, error) {
	var save LegacySave
	for _, k := range heroKeys {
		if v, ok := raw[k]; ok {
			if err := json.Unmarshal(v, &save.HeroName); err == nil && save.HeroName != "" {
				break
			}
		}
	}
	found := false
	for _, k := range logKeys {
		if v, ok := raw[k]; ok {
			if err := json.Unmarshal(v, &save.StoryLog); err != nil {
				return LegacySave{}, fmt.Errorf("failed to parse %s: %w", k, err)
			}
			found = true
			break
		}
	}
	if !found {
		return LegacySave{}, fmt.Errorf("%w: no message log", ErrUnrecognized)
	}
	if v, ok := raw["world_state"]; ok {
		var facts map[string]any
		if err := json.Unmarshal(v, &facts); err == nil {
			save.WorldState = make(map[string]string, len(facts))
			for k, val := range facts {
				save.WorldState[k] = fmt.Sprint(val)
			}
		}
	}
	return save, nil
}

// FromLegacySave converts a save file written before the world model existed.
// The chapter is inferred from the number of narrated turns.
func (m *Migrator) FromLegacySave(save LegacySave) *state.WorldModel {
	heroName := strings.TrimSpace(save.HeroName)
	if heroName == "" {
		heroName = DefaultHeroName
	}
	w := seed(heroName, state.Location{
		ID:          CurrentLocationID,
		Name:        "Current Location",
		Tags:        state.NewStringSet("current"),
		Description: "The current location in the adventure",
	})

	turns := 0
	for _, msg := range save.StoryLog {
		if msg.Role != chat.ChatRoleAgent {
			continue
		}
		turns++
		w.AddEvent(state.Event{
			ID:          fmt.Sprintf("save_turn_%d", turns),
			Descr:       textextract.FirstSentence(msg.Content, descrLimit),
			Timestamp:   turns,
			Impact:      state.Impact{Turn: turns, Source: "save_file"},
			RawResponse: msg.Content,
		})
	}

	switch {
	case turns > 20:
		w.Chapter = 3
	case turns > 10:
		w.Chapter = 2
	default:
		w.Chapter = 1
	}

	m.applyFacts(w, heroName, save.WorldState)

	m.logger.Info("Migrated legacy save", "turns", turns, "chapter", w.Chapter, "facts", len(save.WorldState))
	return w
}

// applyFacts maps free-text "name: description" facts to typed entities.
func (m *Migrator) applyFacts(w *state.WorldModel, heroName string, facts map[string]string) {
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, name := range keys {
		descr := strings.TrimSpace(facts[name])
		name = strings.TrimSpace(name)
		if name == "" || state.FoldName(name) == state.FoldName(heroName) {
			continue
		}
		if isLocationFact(name, descr) {
			if _, ok := w.FindLocationByName(name); ok {
				continue
			}
			w.AddLocation(state.Location{
				ID:          w.UniqueID("loc", name),
				Name:        name,
				Tags:        state.NewStringSet("legacy"),
				Description: descr,
			})
			continue
		}
		if _, ok := w.FindCharacterByName(name); ok {
			continue
		}
		c := state.Character{
			ID:         w.UniqueID("npc", name),
			Name:       name,
			Status:     "unknown",
			LocationID: CurrentLocationID,
		}
		if descr != "" {
			c.Traits = []string{descr}
		}
		w.AddCharacter(c)
	}
}

// Empty creates the world for a fresh game.
func (m *Migrator) Empty(heroName string) *state.WorldModel {
	if strings.TrimSpace(heroName) == "" {
		heroName = DefaultHeroName
	}
	w := seed(heroName, state.Location{
		ID:          state.StartingLocationID,
		Name:        "Unknown Location",
		Tags:        state.NewStringSet("starting", "unknown"),
		Description: "The place where the adventure begins",
	})
	w.AddEvent(state.Event{
		ID:        "game_start",
		Descr:     "The adventure begins",
		Timestamp: 0,
		Impact:    state.Impact{Type: state.ImpactGameStart},
	})
	return w
}

// Decode converts any recognized legacy payload. A JSON array is a bare
// message log; an object carrying a message log but no characters is a
// legacy save file.
func (m *Migrator) Decode(data []byte) (*state.WorldModel, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnrecognized)
	}

	switch data[0] {
	case '[':
		var messages []chat.ChatMessage
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("failed to parse message log: %w", err)
		}
		return m.FromMessageLog(messages, DefaultHeroName), nil
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse save object: %w", err)
		}
		if _, ok := raw["characters"]; ok {
			return nil, fmt.Errorf("%w: world save does not match the current schema", ErrUnrecognized)
		}
		save, err := ParseLegacySave(raw)
		if err != nil {
			return nil, err
		}
		return m.FromLegacySave(save), nil
	}
	return nil, fmt.Errorf("%w: unexpected payload", ErrUnrecognized)
}

// Check returns an error wrapping ErrInvalidWorld when the player is missing
// or a character references an unknown location. Out-of-order timestamps are
// only reported as warnings.
func Check(w *state.WorldModel) (warnings []string, err error) {
	if w == nil {
		return nil, fmt.Errorf("%w: nil world", ErrInvalidWorld)
	}
	if _, ok := w.Player(); !ok {
		return nil, fmt.Errorf("%w: main character not found", ErrInvalidWorld)
	}
	ids := make([]string, 0, len(w.Characters))
	for id := range w.Characters {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		c := w.Characters[id]
		if _, ok := w.Locations[c.LocationID]; !ok {
			return nil, fmt.Errorf("%w: character %s has invalid location %q", ErrInvalidWorld, id, c.LocationID)
		}
	}
	for i := 1; i < len(w.Timeline); i++ {
		if w.Timeline[i].Timestamp < w.Timeline[i-1].Timestamp {
			warnings = append(warnings, fmt.Sprintf("timeline is not ordered by timestamp at event %s", w.Timeline[i].ID))
			break
		}
	}
	return warnings, nil
}

// Validate logs the outcome of Check and reports whether w is usable.
func (m *Migrator) Validate(w *state.WorldModel) bool {
	warnings, err := Check(w)
	for _, warn := range warnings {
		m.logger.Warn("World validation warning", "warning", warn)
	}
	if err != nil {
		m.logger.Error("World validation failed", "error", err)
		return false
	}
	return true
}

func seed(heroName string, loc state.Location) *state.WorldModel {
	w := state.New()
	w.AddLocation(loc)
	w.AddCharacter(state.Character{
		ID:         state.MainCharacterID,
		Name:       heroName,
		Traits:     []string{"protagonist"},
		Status:     "alive",
		LocationID: loc.ID,
		Arcs:       []string{"main_story"},
	})
	return w
}

func isLocationFact(name, descr string) bool {
	s := state.FoldName(name + " " + descr)
	for _, word := range locationWords {
		if strings.Contains(s, word) {
			return true
		}
	}
	return false
}
