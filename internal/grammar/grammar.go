// Package grammar recognises intents in free-form input with ordered regular
// expression patterns. Named capture groups become slots of the resulting
// turn.
//
// Two grammars are built in: [Telephone] recognises "call <who>" requests and
// [YesNo] recognises confirmation answers. Both exist in English and German.
package grammar

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"github.com/MrWong99/telephonist/internal/dialogue"
)

// Intent ids produced by the built-in grammars.
const (
	IntentCall = "call"
	IntentYes  = "yes"
	IntentNo   = "no"
)

// SlotWho is the slot holding the name of the person to call.
const SlotWho = "who"

// Pattern pairs a compiled regex with the intent it signals.
type Pattern struct {
	// Name is a human-readable label for logging and tests.
	Name string

	// Intent is the intent id of a matching input.
	Intent string

	// Regex is matched against the normalised input. Named groups are
	// copied into the turn's slots.
	Regex *regexp.Regexp
}

// Grammar is an ordered list of patterns; the first match wins. A Grammar is
// immutable and safe for concurrent use.
type Grammar struct {
	patterns []Pattern
}

var _ dialogue.Recognizer = (*Grammar)(nil)

// New creates a Grammar from patterns, tried in the given order.
func New(patterns ...Pattern) *Grammar {
	return &Grammar{patterns: patterns}
}

// Recognize matches input against the patterns. Surrounding whitespace and
// trailing punctuation are ignored, inner whitespace is collapsed.
func (g *Grammar) Recognize(input string) (dialogue.Turn, bool) {
	text := clean(input)
	if text == "" {
		return dialogue.Turn{}, false
	}

	for _, p := range g.patterns {
		m := p.Regex.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		turn := dialogue.Turn{IntentID: p.Intent, Input: input}
		for i, name := range p.Regex.SubexpNames() {
			if name == "" || m[i] == "" {
				continue
			}
			v := strings.Trim(m[i], " ,")
			if v == "" {
				continue
			}
			if turn.Slots == nil {
				turn.Slots = make(map[string]string)
			}
			turn.Slots[name] = v
		}
		return turn, true
	}
	return dialogue.Turn{}, false
}

// Patterns returns a copy of the pattern list.
func (g *Grammar) Patterns() []Pattern {
	out := make([]Pattern, len(g.patterns))
	copy(out, g.patterns)
	return out
}

func clean(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, ".!?, ")
}

// Telephone returns the call grammar for tag. Languages other than German
// get the English grammar.
func Telephone(tag language.Tag) *Grammar {
	if isGerman(tag) {
		return New(callDE...)
	}
	return New(callEN...)
}

// YesNo returns the confirmation grammar for tag. Languages other than
// German get the English grammar.
func YesNo(tag language.Tag) *Grammar {
	if isGerman(tag) {
		return New(yesNoDE...)
	}
	return New(yesNoEN...)
}

func isGerman(tag language.Tag) bool {
	base, _ := tag.Base()
	return base.String() == "de"
}
