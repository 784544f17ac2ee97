package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPresets(t *testing.T) {
	p, err := DefaultPresets()
	require.NoError(t, err)

	assert.Equal(t, []string{"Fantasy Classique", "Science-Fiction Spatiale"}, p.UniverseNames())
	assert.Equal(t, []string{"Classique", "Dramatique", "Humoristique", "Poétique"}, p.StyleNames())

	prompt, ok := p.Prompt("Fantasy Classique", "Aria")
	require.True(t, ok)
	assert.Contains(t, prompt, "Le héros, Aria, est un aventurier")
	assert.NotContains(t, prompt, "{hero_name}")
	assert.Contains(t, prompt, "médiéval")

	_, ok = p.Prompt("Western", "Aria")
	assert.False(t, ok)
}

func TestPresets_Style(t *testing.T) {
	p, err := DefaultPresets()
	require.NoError(t, err)

	assert.Equal(t, "Raconte l'histoire de manière directe et factuelle.", p.Style("Classique"))
	assert.Equal(t, DefaultStyle, p.Style("Inconnu"))
}

func TestLoadPresets_Custom(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "presets.yaml",
			content: `universes:
  Western:
    prompt: "{hero_name} arrive dans une ville poussiéreuse."
styles:
  Classique: Sobre.
`,
		},
		{
			name:    "json",
			file:    "presets.json",
			content: `{"universes": {"Western": {"prompt": "{hero_name} arrive dans une ville poussiéreuse."}}, "styles": {"Classique": "Sobre."}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			p, err := LoadPresets(path)
			require.NoError(t, err)

			prompt, ok := p.Prompt("Western", "Jed")
			require.True(t, ok)
			assert.Equal(t, "Jed arrive dans une ville poussiéreuse.", prompt)

			// built-ins survive, custom entries override by name
			_, ok = p.Prompt("Fantasy Classique", "Jed")
			assert.True(t, ok)
			assert.Equal(t, "Sobre.", p.Style("Classique"))
			assert.Len(t, p.StyleNames(), 4)
		})
	}
}

func TestLoadPresets_Errors(t *testing.T) {
	_, err := LoadPresets(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("universes:\n  Vide:\n    prompt: \"\"\n"), 0o644))
	_, err = LoadPresets(path)
	assert.ErrorContains(t, err, "has no prompt")
}
