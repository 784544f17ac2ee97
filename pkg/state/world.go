package state

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

const (
	MainCharacterID    = "main_character"
	StartingLocationID = "starting_location"
)

// Character is a named person in the story. LocationID references an entry
// in WorldModel.Locations.
type Character struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Traits     []string `json:"traits,omitempty"`
	Status     string   `json:"status"`
	LocationID string   `json:"location_id"`
	Arcs       []string `json:"arcs,omitempty"`
}

// Location is a place in the story world.
type Location struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Tags        StringSet `json:"tags"`
	Description string    `json:"description,omitempty"`
}

// WorldModel is the canonical persisted snapshot of a story session.
type WorldModel struct {
	Chapter    int                  `json:"chapter"`
	Characters map[string]Character `json:"characters"`
	Locations  map[string]Location  `json:"locations"`
	Inventory  StringSet            `json:"inventory"`
	Flags      map[string]bool      `json:"flags"`
	Timeline   []Event              `json:"timeline"`
}

// New returns an empty world at chapter 1.
func New() *WorldModel {
	return &WorldModel{
		Chapter:    1,
		Characters: make(map[string]Character),
		Locations:  make(map[string]Location),
		Inventory:  NewStringSet(),
		Flags:      make(map[string]bool),
		Timeline:   make([]Event, 0),
	}
}

// Player returns the main character, if present.
func (w *WorldModel) Player() (Character, bool) {
	c, ok := w.Characters[MainCharacterID]
	return c, ok
}

// AddCharacter inserts or replaces a character. Callers must make sure
// c.LocationID already resolves.
func (w *WorldModel) AddCharacter(c Character) {
	w.Characters[c.ID] = c
}

// AddLocation inserts or replaces a location.
func (w *WorldModel) AddLocation(l Location) {
	if l.Tags == nil {
		l.Tags = NewStringSet()
	}
	w.Locations[l.ID] = l
}

// AddEvent appends e to the timeline. A timestamp lower than the last one is
// raised to keep the timeline non-decreasing.
func (w *WorldModel) AddEvent(e Event) {
	if n := len(w.Timeline); n > 0 && e.Timestamp < w.Timeline[n-1].Timestamp {
		e.Timestamp = w.Timeline[n-1].Timestamp
	}
	w.Timeline = append(w.Timeline, e)
}

// SetFlag records a named boolean.
func (w *WorldModel) SetFlag(name string, value bool) {
	w.Flags[name] = value
}

// AddItem puts an item in the inventory.
func (w *WorldModel) AddItem(item string) {
	item = strings.TrimSpace(item)
	if item == "" {
		return
	}
	w.Inventory.Add(item)
}

// RemoveItem drops an item from the inventory.
func (w *WorldModel) RemoveItem(item string) {
	w.Inventory.Remove(strings.TrimSpace(item))
}

// SetPlayerStatus updates the main character's status.
func (w *WorldModel) SetPlayerStatus(status string) {
	c, ok := w.Characters[MainCharacterID]
	if !ok || status == "" {
		return
	}
	c.Status = status
	w.Characters[MainCharacterID] = c
}

// NextTimestamp is the turn counter for the next committed turn.
func (w *WorldModel) NextTimestamp() int {
	if len(w.Timeline) == 0 {
		return 0
	}
	return w.Timeline[len(w.Timeline)-1].Timestamp + 1
}

// FindCharacterByName matches names case-insensitively.
func (w *WorldModel) FindCharacterByName(name string) (Character, bool) {
	key := FoldName(name)
	for _, c := range w.Characters {
		if FoldName(c.Name) == key {
			return c, true
		}
	}
	return Character{}, false
}

// FindLocationByName matches names case-insensitively.
func (w *WorldModel) FindLocationByName(name string) (Location, bool) {
	key := FoldName(name)
	for _, l := range w.Locations {
		if FoldName(l.Name) == key {
			return l, true
		}
	}
	return Location{}, false
}

// UniqueID derives a map key from a display name, e.g. "npc_old_mara".
func (w *WorldModel) UniqueID(prefix, name string) string {
	base := prefix + "_" + slug(name)
	id := base
	for i := 2; w.idTaken(id); i++ {
		id = fmt.Sprintf("%s_%d", base, i)
	}
	return id
}

func (w *WorldModel) idTaken(id string) bool {
	if _, ok := w.Characters[id]; ok {
		return true
	}
	_, ok := w.Locations[id]
	return ok
}

// DeepCopy returns an independent copy of the world.
func (w *WorldModel) DeepCopy() (*WorldModel, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal world: %w", err)
	}
	var cp WorldModel
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal world: %w", err)
	}
	cp.Normalize()
	return &cp, nil
}

// UnmarshalJSON fills nil collections after decoding so the model is always
// safe to mutate.
func (w *WorldModel) UnmarshalJSON(data []byte) error {
	type plain WorldModel
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*w = WorldModel(p)
	w.Normalize()
	return nil
}

// Normalize fills nil collections and raises the chapter to at least 1.
func (w *WorldModel) Normalize() {
	if w.Chapter < 1 {
		w.Chapter = 1
	}
	if w.Characters == nil {
		w.Characters = make(map[string]Character)
	}
	if w.Locations == nil {
		w.Locations = make(map[string]Location)
	}
	for id, l := range w.Locations {
		if l.Tags == nil {
			l.Tags = NewStringSet()
			w.Locations[id] = l
		}
	}
	if w.Inventory == nil {
		w.Inventory = NewStringSet()
	}
	if w.Flags == nil {
		w.Flags = make(map[string]bool)
	}
	if w.Timeline == nil {
		w.Timeline = make([]Event, 0)
	}
}

// FoldName normalizes a display name for case-insensitive comparison.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func slug(name string) string {
	var sb strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && sb.Len() > 0 {
			sb.WriteByte('_')
			underscore = true
		}
	}
	s := strings.TrimSuffix(sb.String(), "_")
	if s == "" {
		return "unnamed"
	}
	return s
}
