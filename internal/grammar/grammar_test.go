package grammar

import (
	"regexp"
	"testing"

	"golang.org/x/text/language"
)

func TestTelephone_English(t *testing.T) {
	t.Parallel()

	g := Telephone(language.English)
	tests := []struct {
		input string
		who   string
	}{
		{"call Alice", "Alice"},
		{"Call Alice Smith.", "Alice Smith"},
		{"  please   phone   bob  ", "bob"},
		{"ring mum please", "mum"},
		{"dial up the office", "the office"},
		{"call bob now", "bob"},
		{"give Alice a call", "Alice"},
		{"could you call Dr. Who for me?", "Dr. Who"},
		{"I want to talk to grandma", "grandma"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			turn, ok := g.Recognize(tt.input)
			if !ok {
				t.Fatalf("Recognize(%q) = false", tt.input)
			}
			if turn.IntentID != IntentCall {
				t.Errorf("intent = %q, want %q", turn.IntentID, IntentCall)
			}
			if got := turn.Slot(SlotWho); got != tt.who {
				t.Errorf("who = %q, want %q", got, tt.who)
			}
			if turn.Input != tt.input {
				t.Errorf("input = %q, want raw %q", turn.Input, tt.input)
			}
		})
	}
}

func TestTelephone_German(t *testing.T) {
	t.Parallel()

	g := Telephone(language.German)
	tests := []struct {
		input string
		who   string
	}{
		{"ruf Mama an", "Mama"},
		{"Rufe bitte Anna Schmidt an", "Anna Schmidt"},
		{"kannst du Papa anrufen?", "Papa"},
		{"verbinde mich mit dem Büro", "dem Büro"},
		{"Oma anrufen", "Oma"},
	}
	for _, tt := range tests {
		turn, ok := g.Recognize(tt.input)
		if !ok {
			t.Errorf("Recognize(%q) = false", tt.input)
			continue
		}
		if got := turn.Slot(SlotWho); got != tt.who {
			t.Errorf("Recognize(%q) who = %q, want %q", tt.input, got, tt.who)
		}
	}
}

func TestTelephone_Rejects(t *testing.T) {
	t.Parallel()

	g := Telephone(language.English)
	for _, in := range []string{"", "   ", "hello there", "yes", "what is the weather", "call"} {
		if turn, ok := g.Recognize(in); ok {
			t.Errorf("Recognize(%q) = %+v, want no match", in, turn)
		}
	}
}

func TestYesNo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag    language.Tag
		input  string
		intent string
		ok     bool
	}{
		{language.English, "yes", IntentYes, true},
		{language.English, "Yes please!", IntentYes, true},
		{language.English, "go ahead", IntentYes, true},
		{language.English, "call her", IntentYes, true},
		{language.English, "no", IntentNo, true},
		{language.English, "No thanks.", IntentNo, true},
		{language.English, "don't", IntentNo, true},
		{language.English, "never mind", IntentNo, true},
		{language.English, "call bob", "", false},
		{language.English, "maybe", "", false},
		{language.German, "ja", IntentYes, true},
		{language.German, "Ja bitte", IntentYes, true},
		{language.German, "nein danke", IntentNo, true},
		{language.German, "nö", IntentNo, true},
		{language.German, "yes", "", false},
		{language.MustParse("de-AT"), "klar", IntentYes, true},
		{language.French, "yes", IntentYes, true},
	}
	for _, tt := range tests {
		turn, ok := YesNo(tt.tag).Recognize(tt.input)
		if ok != tt.ok {
			t.Errorf("%v %q: ok = %v, want %v", tt.tag, tt.input, ok, tt.ok)
			continue
		}
		if ok && turn.IntentID != tt.intent {
			t.Errorf("%v %q: intent = %q, want %q", tt.tag, tt.input, turn.IntentID, tt.intent)
		}
	}
}

func TestGrammar_FirstPatternWins(t *testing.T) {
	t.Parallel()

	g := New(
		Pattern{Name: "a", Intent: "first", Regex: regexp.MustCompile(`^x(?P<rest>.*)$`)},
		Pattern{Name: "b", Intent: "second", Regex: regexp.MustCompile(`^x.*$`)},
	)
	turn, ok := g.Recognize("xyz")
	if !ok || turn.IntentID != "first" {
		t.Fatalf("turn = %+v, ok %v; want intent first", turn, ok)
	}
	if turn.Slot("rest") != "yz" {
		t.Errorf("rest = %q, want yz", turn.Slot("rest"))
	}

	// Empty optional groups leave no slot behind.
	turn, _ = g.Recognize("x")
	if turn.Slots != nil {
		t.Errorf("slots = %v, want nil", turn.Slots)
	}
}

func TestGrammar_PatternsIsCopy(t *testing.T) {
	t.Parallel()

	g := Telephone(language.English)
	ps := g.Patterns()
	ps[0].Intent = "mutated"
	if g.Patterns()[0].Intent == "mutated" {
		t.Error("Patterns exposed internal slice")
	}
}
