package textextract

import (
	"regexp"
	"strings"
)

// ChoiceCount is the number of choices a valid reply must carry.
const ChoiceCount = 4

// HeroPlaceholder is substituted with the hero's name in generated text.
const HeroPlaceholder = "{hero_name}"

var (
	choiceLine   = regexp.MustCompile(`^\s*(\d+[.)]|[-*])\s`)
	choicePrefix = regexp.MustCompile(`^\s*(\d+[.)]|[-*])\s*`)
)

// ExtractChoices splits a generated reply into narrative prose and choices.
//
// Lines starting with "1." / "1)" / "-" / "*" followed by whitespace are
// choices and lose their enumerator. When no line is enumerated and more than
// ChoiceCount lines remain, the last ChoiceCount lines become the choices
// whatever they hold, blank lines included.
func ExtractChoices(text string) (string, []string) {
	lines := strings.Split(strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n")), "\n")

	var narrative, choices []string
	for _, line := range lines {
		if choiceLine.MatchString(line) {
			choices = append(choices, strings.TrimSpace(choicePrefix.ReplaceAllString(line, "")))
			continue
		}
		narrative = append(narrative, line)
	}

	if len(choices) == 0 && len(narrative) > ChoiceCount {
		cut := len(narrative) - ChoiceCount
		for _, line := range narrative[cut:] {
			choices = append(choices, strings.TrimSpace(line))
		}
		narrative = narrative[:cut]
	}

	return strings.TrimSpace(strings.Join(narrative, "\n")), choices
}

// ReplaceHeroPlaceholder fills in the hero name left as a template marker.
func ReplaceHeroPlaceholder(text, heroName string) string {
	return strings.ReplaceAll(text, HeroPlaceholder, heroName)
}

// FirstLine returns the first line of text, capped at limit runes with a
// trailing "..." when cut.
func FirstLine(text string, limit int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)
	r := []rune(line)
	if limit > 0 && len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return line
}

// FirstSentence summarizes a reply for a timeline entry: the first line,
// up to its first ".", capped at limit runes.
func FirstSentence(text string, limit int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	sentence, _, _ := strings.Cut(line, ".")
	sentence = strings.TrimSpace(sentence)
	r := []rune(sentence)
	if limit > 0 && len(r) > limit {
		return string(r[:limit])
	}
	return sentence
}
