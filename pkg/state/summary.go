package state

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Summary is a compact view of the world used as prompt context.
// Zero-valued fields were either empty or omitted as defaults.
type Summary struct {
	Chapter         int      `json:"chapter,omitempty"`
	KnownCharacters []string `json:"known_characters,omitempty"`
	KnownLocations  []string `json:"known_locations,omitempty"`
	Inventory       []string `json:"inventory,omitempty"`
	ActiveFlags     []string `json:"active_flags,omitempty"`
	TimelineLength  int      `json:"timeline_length,omitempty"`
}

// WorldSummary lists NPC names (player excluded), known locations (starting
// location excluded), inventory, active flags and the timeline length. With
// excludeDefaults, chapter 1 is dropped along with every empty category.
func (w *WorldModel) WorldSummary(excludeDefaults bool) Summary {
	s := Summary{
		Chapter:        w.Chapter,
		TimelineLength: len(w.Timeline),
	}
	for _, id := range sortedKeys(w.Characters) {
		if id == MainCharacterID {
			continue
		}
		s.KnownCharacters = append(s.KnownCharacters, w.Characters[id].Name)
	}
	for _, id := range sortedKeys(w.Locations) {
		if id == StartingLocationID {
			continue
		}
		s.KnownLocations = append(s.KnownLocations, w.Locations[id].Name)
	}
	s.Inventory = w.Inventory.Sorted()
	for _, name := range sortedKeys(w.Flags) {
		if w.Flags[name] {
			s.ActiveFlags = append(s.ActiveFlags, name)
		}
	}

	if !excludeDefaults {
		if s.KnownCharacters == nil {
			s.KnownCharacters = []string{}
		}
		if s.KnownLocations == nil {
			s.KnownLocations = []string{}
		}
		if s.ActiveFlags == nil {
			s.ActiveFlags = []string{}
		}
		return s
	}

	if s.Chapter <= 1 {
		s.Chapter = 0
	}
	if len(s.Inventory) == 0 {
		s.Inventory = nil
	}
	return s
}

// String renders the summary as a single line for the system instruction.
// It returns "" when nothing is set.
func (s Summary) String() string {
	var parts []string
	if s.Chapter > 0 {
		parts = append(parts, fmt.Sprintf("Chapitre %d.", s.Chapter))
	}
	if len(s.KnownCharacters) > 0 {
		parts = append(parts, "PNJ connus: "+strings.Join(s.KnownCharacters, ", ")+".")
	}
	if len(s.KnownLocations) > 0 {
		parts = append(parts, "Lieux connus: "+strings.Join(s.KnownLocations, ", ")+".")
	}
	if len(s.Inventory) > 0 {
		parts = append(parts, "Inventaire: "+strings.Join(s.Inventory, ", ")+".")
	}
	if len(s.ActiveFlags) > 0 {
		parts = append(parts, "États actifs: "+strings.Join(s.ActiveFlags, ", ")+".")
	}
	if s.TimelineLength > 0 {
		parts = append(parts, fmt.Sprintf("Événements: %d.", s.TimelineLength))
	}
	return strings.Join(parts, " ")
}

// RecentEvents yields at most the last n timeline entries, oldest first.
func (w *WorldModel) RecentEvents(n int) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if n <= 0 {
			return
		}
		start := max(len(w.Timeline)-n, 0)
		for _, e := range w.Timeline[start:] {
			if !yield(e) {
				return
			}
		}
	}
}

// LastEvents is RecentEvents collected into a slice.
func (w *WorldModel) LastEvents(n int) []Event {
	return slices.Collect(w.RecentEvents(n))
}

// WorldContext describes the hero, current place, NPCs, inventory, flags and
// the last few events as one " | " separated line.
func (w *WorldModel) WorldContext() string {
	var parts []string

	hero, ok := w.Player()
	if ok {
		info := fmt.Sprintf("Héros: %s (%s)", hero.Name, hero.Status)
		if len(hero.Traits) > 0 {
			info += ", traits: " + strings.Join(hero.Traits, ", ")
		}
		parts = append(parts, info)

		if loc, found := w.Locations[hero.LocationID]; found {
			info := "Lieu actuel: " + loc.Name
			if loc.Description != "" {
				info += " - " + loc.Description
			}
			parts = append(parts, info)
		}
	}

	var npcs []string
	for _, id := range sortedKeys(w.Characters) {
		if id == MainCharacterID {
			continue
		}
		c := w.Characters[id]
		npcs = append(npcs, fmt.Sprintf("%s (%s)", c.Name, c.Status))
	}
	if len(npcs) > 0 {
		parts = append(parts, "PNJ connus: "+strings.Join(npcs, ", "))
	}

	if len(w.Inventory) > 0 {
		parts = append(parts, "Inventaire: "+strings.Join(w.Inventory.Sorted(), ", "))
	}

	var flags []string
	for _, name := range sortedKeys(w.Flags) {
		if w.Flags[name] {
			flags = append(flags, name)
		}
	}
	if len(flags) > 0 {
		parts = append(parts, "États actifs: "+strings.Join(flags, ", "))
	}

	var recent []string
	for e := range w.RecentEvents(3) {
		recent = append(recent, truncate(e.Descr, 50))
	}
	if len(recent) > 0 {
		parts = append(parts, "Événements récents: "+strings.Join(recent, "; "))
	}

	return strings.Join(parts, " | ")
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
