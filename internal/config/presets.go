package config

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultStyle is used when no style is selected or the name is unknown.
const DefaultStyle = "Style par défaut."

const heroPlaceholder = "{hero_name}"

//go:embed presets.yaml
var defaultPresets []byte

// Universe is a named story setting. Prompt may contain {hero_name}.
type Universe struct {
	Prompt string `yaml:"prompt" json:"prompt"`
}

// Presets are the selectable universes and narration styles.
type Presets struct {
	Universes map[string]Universe `yaml:"universes" json:"universes"`
	Styles    map[string]string   `yaml:"styles" json:"styles"`
}

// DefaultPresets returns the built-in universes and styles.
func DefaultPresets() (*Presets, error) {
	p, err := ParsePresets(defaultPresets)
	if err != nil {
		return nil, fmt.Errorf("loading built-in presets: %w", err)
	}
	return p, nil
}

// ParsePresets decodes YAML. JSON documents are valid YAML and parse too.
func ParsePresets(data []byte) (*Presets, error) {
	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing presets: %w", err)
	}
	if p.Universes == nil {
		p.Universes = make(map[string]Universe)
	}
	if p.Styles == nil {
		p.Styles = make(map[string]string)
	}
	for name, u := range p.Universes {
		if strings.TrimSpace(u.Prompt) == "" {
			return nil, fmt.Errorf("parsing presets: universe %q has no prompt", name)
		}
	}
	return &p, nil
}

// LoadPresets returns the built-in presets with the entries of path layered
// on top. An empty path yields the built-ins alone.
func LoadPresets(path string) (*Presets, error) {
	p, err := DefaultPresets()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading presets: %w", err)
	}
	custom, err := ParsePresets(data)
	if err != nil {
		return nil, fmt.Errorf("loading presets from %s: %w", path, err)
	}
	maps.Copy(p.Universes, custom.Universes)
	maps.Copy(p.Styles, custom.Styles)
	return p, nil
}

// Prompt returns the universe prompt with the hero name substituted.
func (p *Presets) Prompt(name, hero string) (string, bool) {
	u, ok := p.Universes[name]
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(u.Prompt, heroPlaceholder, hero), true
}

// Style returns the style instruction, or DefaultStyle for an unknown name.
func (p *Presets) Style(name string) string {
	if s, ok := p.Styles[name]; ok {
		return s
	}
	return DefaultStyle
}

func (p *Presets) UniverseNames() []string {
	return slices.Sorted(maps.Keys(p.Universes))
}

func (p *Presets) StyleNames() []string {
	return slices.Sorted(maps.Keys(p.Styles))
}
