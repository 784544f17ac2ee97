package textextract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/fabler/pkg/chat"
)

// EntityExtractionPrompt asks for named characters and places as structured data.
const EntityExtractionPrompt = `Lis le paragraphe fourni par l'utilisateur et extrais les entités nommées.
Réponds uniquement avec un objet JSON valide, sans texte autour, de la forme :
{"characters":[{"name":"...","description":"..."}],"locations":[{"name":"...","description":"..."}],"hero_status":"..."}
- "characters" : les personnages non joueurs nommés, avec leur rôle ou une caractéristique.
- "locations" : les lieux importants nommés.
- "hero_status" : l'état du héros %s en un ou deux mots (par exemple "blessé"), ou "" si rien ne change.
N'inclus pas le héros %s dans "characters". Utilise des listes vides si rien n'est trouvé.`

// Entity is a named character or location found in narrative text.
type Entity struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Entities is the parsed result of an extraction reply.
type Entities struct {
	Characters []Entity `json:"characters" yaml:"characters"`
	Locations  []Entity `json:"locations" yaml:"locations"`
	HeroStatus string   `json:"hero_status" yaml:"hero_status"`
}

// Empty reports whether nothing was extracted.
func (e Entities) Empty() bool {
	return len(e.Characters) == 0 && len(e.Locations) == 0 && e.HeroStatus == ""
}

// CompleteFunc sends messages to a generator and returns its text.
type CompleteFunc func(ctx context.Context, messages []chat.ChatMessage) (string, error)

// EntityPrompt builds the request for a secondary extraction call.
func EntityPrompt(narrative, heroName string) []chat.ChatMessage {
	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: fmt.Sprintf(EntityExtractionPrompt, heroName, heroName)},
		{Role: chat.ChatRoleUser, Content: "Paragraphe à analyser:\n" + narrative},
	}
}

// ExtractEntities asks the generator for the entities named in narrative.
// Malformed replies yield an empty result. A generator error is returned
// alongside the empty result so callers can log it.
func ExtractEntities(ctx context.Context, complete CompleteFunc, narrative, heroName string) (Entities, error) {
	if strings.TrimSpace(narrative) == "" {
		return Entities{}, nil
	}
	reply, err := complete(ctx, EntityPrompt(narrative, heroName))
	if err != nil {
		return Entities{}, fmt.Errorf("failed to extract entities: %w", err)
	}
	return WithoutHero(ParseEntities(reply), heroName), nil
}

// ParseEntities decodes a JSON or YAML reply, optionally wrapped in a
// Markdown code fence. It never fails; unusable input gives an empty result.
func ParseEntities(reply string) Entities {
	body := stripFence(reply)
	if body == "" {
		return Entities{}
	}

	var out Entities
	if obj := outerObject(body); obj != "" {
		if err := json.Unmarshal([]byte(obj), &out); err == nil {
			return clean(out)
		}
		out = Entities{}
	}
	if err := yaml.Unmarshal([]byte(body), &out); err != nil {
		return Entities{}
	}
	return clean(out)
}

// WithoutHero drops characters whose name matches the hero's.
func WithoutHero(e Entities, heroName string) Entities {
	if heroName == "" {
		return e
	}
	fold := cases.Fold()
	hero := fold.String(strings.TrimSpace(heroName))
	kept := e.Characters[:0:0]
	for _, c := range e.Characters {
		if fold.String(strings.TrimSpace(c.Name)) == hero {
			continue
		}
		kept = append(kept, c)
	}
	e.Characters = kept
	return e
}

func clean(e Entities) Entities {
	e.Characters = cleanList(e.Characters)
	e.Locations = cleanList(e.Locations)
	e.HeroStatus = strings.TrimSpace(e.HeroStatus)
	return e
}

func cleanList(in []Entity) []Entity {
	var out []Entity
	for _, item := range in {
		item.Name = strings.TrimSpace(item.Name)
		item.Description = strings.TrimSpace(item.Description)
		if item.Name == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return ""
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func outerObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
