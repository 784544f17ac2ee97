package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/fabler/pkg/state"
	"github.com/jwebster45206/fabler/pkg/textextract"
)

// OpeningInput is the player input sent with the first turn of a game.
const OpeningInput = "begin the adventure"

// FormatDirective closes every system instruction.
const FormatDirective = "Format strict: histoire courte + 4 choix numérotés."

const (
	openingTemplate      = "Choix du joueur: '%s'. Commence l'aventure avec ce choix. Histoire + 4 choix."
	continuationTemplate = "Continue l'aventure. %s Histoire + 4 choix."
	choiceTemplate       = "Choix: '%s'. %s Continue l'histoire + 4 choix."
	correctionTemplate   = "Ta réponse précédente était invalide : '%s'. Corrige-la. Fournis une narration et 4 choix numérotés."
	recentContextPrefix  = "Contexte récent: "
	recentContextLimit   = 100
)

// Universe is the story family picked from a base prompt.
type Universe string

const (
	UniverseFantasy Universe = "fantasy"
	UniverseSciFi   Universe = "scifi"
	UniverseGeneric Universe = "adventure"
)

var (
	fantasyKeywords = []string{"fantasy", "médiéval", "dragon", "magie"}
	scifiKeywords   = []string{"science", "spatial", "vaisseau", "captain"}
)

// SelectUniverse sniffs keywords in the base prompt. Fantasy wins over sci-fi
// when both match.
func SelectUniverse(basePrompt string) Universe {
	p := strings.ToLower(basePrompt)
	switch {
	case containsAny(p, fantasyKeywords):
		return UniverseFantasy
	case containsAny(p, scifiKeywords):
		return UniverseSciFi
	default:
		return UniverseGeneric
	}
}

// Opener is the one-line template for the universe.
func (u Universe) Opener(heroName string) string {
	switch u {
	case UniverseFantasy:
		return fmt.Sprintf("Aventure fantasy avec %s dans un monde médiéval.", heroName)
	case UniverseSciFi:
		return fmt.Sprintf("Aventure spatiale avec le capitaine %s.", heroName)
	default:
		return fmt.Sprintf("Aventure avec %s.", heroName)
	}
}

// CompactStyle reduces a style instruction to one canned phrase.
func CompactStyle(style string) string {
	s := strings.ToLower(style)
	switch {
	case containsAny(s, []string{"dramatique", "suspense"}):
		return "Style: tension et suspense."
	case containsAny(s, []string{"humoristique", "amusant"}):
		return "Style: léger et drôle."
	case containsAny(s, []string{"poétique", "imagé"}):
		return "Style: riche et évocateur."
	default:
		return "Style: direct et clair."
	}
}

// SystemOpener is the fixed part of the system instruction stored when a
// game starts.
func SystemOpener(heroName, basePrompt, style string) string {
	return SelectUniverse(basePrompt).Opener(heroName) + " " + CompactStyle(style)
}

// SystemInstruction appends the world summary (when non-empty) and the format
// directive to the stored opener.
func SystemInstruction(opener, summary string) string {
	parts := []string{strings.TrimSpace(opener)}
	if s := strings.TrimSpace(summary); s != "" {
		parts = append(parts, s)
	}
	parts = append(parts, FormatDirective)
	return strings.Join(parts, " ")
}

// TurnKind selects the turn instruction template.
type TurnKind int

const (
	TurnOpening TurnKind = iota
	TurnContinuation
	TurnChoice
)

func (k TurnKind) String() string {
	switch k {
	case TurnOpening:
		return "opening"
	case TurnContinuation:
		return "continuation"
	case TurnChoice:
		return "choice"
	}
	return "unknown"
}

// TurnInstruction renders the user message for a turn. recentContext is the
// output of RecentContext and may be empty.
func TurnInstruction(kind TurnKind, input, recentContext string) string {
	var s string
	switch kind {
	case TurnOpening:
		s = fmt.Sprintf(openingTemplate, input)
	case TurnContinuation:
		s = fmt.Sprintf(continuationTemplate, recentContext)
	default:
		s = fmt.Sprintf(choiceTemplate, input, recentContext)
	}
	return strings.Join(strings.Fields(s), " ")
}

// CorrectionInstruction replaces the turn instruction after an invalid reply.
func CorrectionInstruction(invalidReply string) string {
	return fmt.Sprintf(correctionTemplate, strings.TrimSpace(invalidReply))
}

// RecentContext quotes the first line of the latest narration in events, or
// returns "" when there is none.
func RecentContext(events []state.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].IsNarration() {
			line := textextract.FirstLine(events[i].Text(), recentContextLimit)
			if line == "" {
				return ""
			}
			return recentContextPrefix + line
		}
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
