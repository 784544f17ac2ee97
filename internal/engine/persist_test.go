package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/fabler/pkg/migrate"
	"github.com/jwebster45206/fabler/pkg/state"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	f.entities.SetResponses(`{"characters":[{"name":"Old Mara","description":"fisherwoman"}],"locations":[{"name":"Harbor"}]}`)
	f.start(t)

	data, err := f.session.Save()
	require.NoError(t, err)
	want := mustWorld(t, f.session)

	other := newFixture(t, nil)
	require.NoError(t, other.session.Load(data))

	assert.Equal(t, StateAwaitingChoice, other.session.State())
	assert.Empty(t, cmp.Diff(want, mustWorld(t, other.session), cmpopts.EquateEmpty()))
	assert.Equal(t, f.session.Choices(), other.session.Choices())
	assert.Equal(t, "Aria", other.session.HeroName())
}

func TestSave_BeforeStart(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.session.Save()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLoad_LegacyShapes(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		hero     string
		chapter  int
		wantNPC  string
		wantText string
	}{
		{
			name: "message log",
			data: `[
				{"role":"user","content":"begin the adventure"},
				{"role":"assistant","content":"You wake in a cell.\n1. Shout\n2. Sleep\n3. Search\n4. Wait"}
			]`,
			hero:     migrate.DefaultHeroName,
			chapter:  1,
			wantText: "You wake in a cell.",
		},
		{
			name: "save file",
			data: `{
				"hero_name": "Lyra",
				"story_log": [
					{"role":"assistant","content":"The tavern is loud.\n1. Drink\n2. Listen\n3. Leave\n4. Sing"}
				],
				"world_state": {"Borin": "forgeron bourru", "taverne": "Le Poney Fringant"}
			}`,
			hero:     "Lyra",
			chapter:  1,
			wantNPC:  "Borin",
			wantText: "The tavern is loud.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			require.NoError(t, f.session.Load([]byte(tt.data)))

			assert.Equal(t, StateAwaitingChoice, f.session.State())
			assert.Equal(t, tt.hero, f.session.HeroName())
			assert.Equal(t, tt.wantText, f.session.Narrative())
			assert.Len(t, f.session.Choices(), 4)

			w := mustWorld(t, f.session)
			assert.Equal(t, tt.chapter, w.Chapter)
			assert.Equal(t, 1, countImpact(w, state.ImpactSystemMessage), "a system event is added")
			if tt.wantNPC != "" {
				_, ok := w.FindCharacterByName(tt.wantNPC)
				assert.True(t, ok)
			}

			// a migrated world can be played
			f.story.SetResponses(otherReply)
			require.NoError(t, f.session.SubmitChoice(context.Background(), "Listen"))
			assert.Equal(t, "A bell rings in the tower.", f.session.Narrative())
		})
	}
}

func TestLoad_FailureLeavesWorldUntouched(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	before := mustWorld(t, f.session)

	dangling := state.New()
	dangling.AddCharacter(state.Character{ID: state.MainCharacterID, Name: "Aria", LocationID: "nowhere"})
	danglingData, err := json.Marshal(dangling)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "garbage", data: []byte("not json")},
		{name: "empty", data: nil},
		{name: "dangling location", data: danglingData},
		{name: "unknown schema", data: []byte(`{"characters":{},"extra":true}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.session.Load(tt.data)
			assert.ErrorIs(t, err, ErrLoadFailed)
			assert.Equal(t, StateAwaitingChoice, f.session.State())
			assert.Empty(t, cmp.Diff(before, mustWorld(t, f.session), cmpopts.EquateEmpty()))
		})
	}
}

func TestLoad_ReplacesInFlightExtraction(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	data, err := f.session.Save()
	require.NoError(t, err)

	f.entities.SetResponses(`{"characters":[{"name":"Ghost"}],"locations":[]}`)
	f.story.SetResponses(otherReply)
	require.NoError(t, f.session.SubmitChoice(context.Background(), "Board the ship"))
	require.NoError(t, f.session.Load(data))
	require.NoError(t, f.session.waitExtraction(context.Background()))

	_, ok := mustWorld(t, f.session).FindCharacterByName("Ghost")
	assert.False(t, ok, "extraction started before the load must not touch the loaded world")
}

func TestDecodeWorld_StrictRejectsUnknownFields(t *testing.T) {
	_, err := decodeStrict([]byte(`{"chapter":1,"characters":{"main_character":{"id":"main_character","name":"A","status":"alive","location_id":"x"}},"bogus":1}`))
	assert.Error(t, err)
}
