package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/fabler/pkg/chat"
	"github.com/jwebster45206/fabler/pkg/state"
)

func testMigrator() *Migrator {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func storyLog(turns int) []chat.ChatMessage {
	msgs := []chat.ChatMessage{{Role: chat.ChatRoleSystem, Content: "Aventure avec Bo."}}
	for i := 1; i <= turns; i++ {
		msgs = append(msgs,
			chat.ChatMessage{Role: chat.ChatRoleUser, Content: fmt.Sprintf("choix %d", i)},
			chat.ChatMessage{Role: chat.ChatRoleAgent, Content: fmt.Sprintf("Tour %d commence. Suite.\n1. a\n2. b\n3. c\n4. d", i)},
		)
	}
	return msgs
}

func TestFromMessageLog(t *testing.T) {
	w := testMigrator().FromMessageLog(storyLog(3), "Bo")

	hero, ok := w.Player()
	require.True(t, ok)
	assert.Equal(t, "Bo", hero.Name)
	assert.Equal(t, []string{"protagonist"}, hero.Traits)
	assert.Equal(t, []string{"main_story"}, hero.Arcs)
	assert.Equal(t, CurrentLocationID, hero.LocationID)

	loc := w.Locations[CurrentLocationID]
	assert.Equal(t, "Starting Location", loc.Name)
	assert.True(t, loc.Tags.Has("unknown"))

	require.Len(t, w.Timeline, 3)
	for i, e := range w.Timeline {
		turn := i + 1
		assert.Equal(t, fmt.Sprintf("turn_%d", turn), e.ID)
		assert.Equal(t, turn, e.Timestamp)
		assert.Equal(t, state.Impact{Turn: turn}, e.Impact)
		assert.Equal(t, fmt.Sprintf("Tour %d commence", turn), e.Descr)
		assert.NotEmpty(t, e.RawResponse)
	}
	assert.Equal(t, 1, w.Chapter)
	assert.True(t, testMigrator().Validate(w))
}

func TestFromMessageLog_DefaultHero(t *testing.T) {
	w := testMigrator().FromMessageLog(nil, " ")
	hero, _ := w.Player()
	assert.Equal(t, DefaultHeroName, hero.Name)
	assert.Empty(t, w.Timeline)
}

func TestFromLegacySave_Chapter(t *testing.T) {
	tests := []struct {
		turns   int
		chapter int
	}{
		{turns: 0, chapter: 1},
		{turns: 10, chapter: 1},
		{turns: 11, chapter: 2},
		{turns: 20, chapter: 2},
		{turns: 21, chapter: 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d turns", tt.turns), func(t *testing.T) {
			w := testMigrator().FromLegacySave(LegacySave{HeroName: "Bo", StoryLog: storyLog(tt.turns)})
			assert.Equal(t, tt.chapter, w.Chapter)
			assert.Len(t, w.Timeline, tt.turns)
		})
	}
}

func TestFromLegacySave_Events(t *testing.T) {
	w := testMigrator().FromLegacySave(LegacySave{StoryLog: storyLog(2)})

	hero, _ := w.Player()
	assert.Equal(t, DefaultHeroName, hero.Name)
	assert.Equal(t, "Current Location", w.Locations[CurrentLocationID].Name)
	assert.True(t, w.Locations[CurrentLocationID].Tags.Has("current"))

	require.Len(t, w.Timeline, 2)
	assert.Equal(t, "save_turn_2", w.Timeline[1].ID)
	assert.Equal(t, state.Impact{Turn: 2, Source: "save_file"}, w.Timeline[1].Impact)
}

func TestFromLegacySave_Facts(t *testing.T) {
	w := testMigrator().FromLegacySave(LegacySave{
		HeroName: "Bo",
		StoryLog: storyLog(1),
		WorldState: map[string]string{
			"Mara":             "forgeronne bourrue",
			"Taverne du Pendu": "repaire de contrebandiers",
			"Le Bois":          "un lieu sombre",
			"bo":               "le héros",
			"":                 "ignored",
		},
	})

	mara, ok := w.FindCharacterByName("mara")
	require.True(t, ok)
	assert.Equal(t, []string{"forgeronne bourrue"}, mara.Traits)
	assert.Equal(t, CurrentLocationID, mara.LocationID)

	_, ok = w.FindLocationByName("Taverne du Pendu")
	assert.True(t, ok)
	bois, ok := w.FindLocationByName("le bois")
	require.True(t, ok)
	assert.Equal(t, "un lieu sombre", bois.Description)

	assert.Len(t, w.Characters, 2, "hero fact must not create an NPC")
	assert.True(t, testMigrator().Validate(w))
}

func TestEmpty(t *testing.T) {
	w := testMigrator().Empty("Aria")

	hero, ok := w.Player()
	require.True(t, ok)
	assert.Equal(t, state.StartingLocationID, hero.LocationID)

	loc := w.Locations[state.StartingLocationID]
	assert.Equal(t, "Unknown Location", loc.Name)
	assert.Equal(t, []string{"starting", "unknown"}, loc.Tags.Sorted())

	require.Len(t, w.Timeline, 1)
	assert.Equal(t, "game_start", w.Timeline[0].ID)
	assert.Equal(t, 0, w.Timeline[0].Timestamp)
	assert.Equal(t, state.Impact{Type: state.ImpactGameStart}, w.Timeline[0].Impact)
}

func TestDecode(t *testing.T) {
	bareLog, err := json.Marshal(storyLog(2))
	require.NoError(t, err)

	legacy, err := json.Marshal(map[string]any{
		"hero_name":   "Zed",
		"story_log":   storyLog(12),
		"world_state": map[string]any{"Mara": "forgeronne", "age": 3},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    []byte
		hero    string
		chapter int
		events  int
		err     error
	}{
		{name: "bare message list", data: bareLog, hero: DefaultHeroName, chapter: 1, events: 2},
		{name: "legacy save", data: legacy, hero: "Zed", chapter: 2, events: 12},
		{name: "messages key", data: []byte(`{"hero":"Ily","messages":[{"role":"assistant","content":"Salut."}]}`), hero: "Ily", chapter: 1, events: 1},
		{name: "current schema is not legacy", data: []byte(`{"characters":{}}`), err: ErrUnrecognized},
		{name: "object without log", data: []byte(`{"foo":1}`), err: ErrUnrecognized},
		{name: "scalar", data: []byte(`42`), err: ErrUnrecognized},
		{name: "empty", data: []byte("  "), err: ErrUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := testMigrator().Decode(tt.data)
			if tt.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.err), "expected %v, got %v", tt.err, err)
				return
			}
			require.NoError(t, err)
			hero, _ := w.Player()
			assert.Equal(t, tt.hero, hero.Name)
			assert.Equal(t, tt.chapter, w.Chapter)
			assert.Len(t, w.Timeline, tt.events)
		})
	}
}

func TestDecode_BadLog(t *testing.T) {
	_, err := testMigrator().Decode([]byte(`{"story_log":"nope"}`))
	assert.Error(t, err)

	_, err = testMigrator().Decode([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	valid := func() *state.WorldModel { return testMigrator().Empty("Aria") }

	tests := []struct {
		name     string
		world    func() *state.WorldModel
		valid    bool
		warnings int
	}{
		{name: "fresh world", world: valid, valid: true},
		{name: "nil world", world: func() *state.WorldModel { return nil }, valid: false},
		{
			name: "missing player",
			world: func() *state.WorldModel {
				w := valid()
				delete(w.Characters, state.MainCharacterID)
				return w
			},
			valid: false,
		},
		{
			name: "dangling location",
			world: func() *state.WorldModel {
				w := valid()
				w.AddCharacter(state.Character{ID: "npc_x", Name: "X", LocationID: "nowhere"})
				return w
			},
			valid: false,
		},
		{
			name: "unordered timeline only warns",
			world: func() *state.WorldModel {
				w := valid()
				w.Timeline = append(w.Timeline, state.Event{ID: "late", Timestamp: 5}, state.Event{ID: "early", Timestamp: 2})
				return w
			},
			valid:    true,
			warnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings, err := Check(tt.world())
			assert.Len(t, warnings, tt.warnings)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidWorld)
			}
			assert.Equal(t, tt.valid, testMigrator().Validate(tt.world()))
		})
	}
}
