package match_test

import (
	"testing"

	"github.com/MrWong99/telephonist/internal/match"
	"github.com/MrWong99/telephonist/pkg/contact"
)

func entries(names ...string) []contact.Entry {
	out := make([]contact.Entry, len(names))
	for i, n := range names {
		out[i] = contact.Entry{ID: n, DisplayName: n}
	}
	return out
}

func names(r match.Ranked) []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.DisplayName()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRank_EmptyDirectory(t *testing.T) {
	t.Parallel()

	got := match.Rank("alice", nil)
	if got == nil {
		t.Fatal("Rank returned nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestRank_SortedAscending(t *testing.T) {
	t.Parallel()

	got := match.Rank("ann", entries("Dan", "Anne", "Ann", "Anna"))

	want := []string{"Ann", "Anne", "Anna", "Dan"}
	if !equal(names(got), want) {
		t.Fatalf("order = %v, want %v", names(got), want)
	}
	wantDist := []int{0, 1, 1, 2}
	for i, c := range got {
		if c.Distance != wantDist[i] {
			t.Errorf("%s distance = %d, want %d", c.DisplayName(), c.Distance, wantDist[i])
		}
	}
}

func TestRank_StableWithinTies(t *testing.T) {
	t.Parallel()

	// Anne and Anna share distance 1; whichever the directory lists first
	// must stay first.
	a := match.Rank("ann", entries("Anne", "Anna", "Ann"))
	b := match.Rank("ann", entries("Anna", "Anne", "Ann"))

	if want := []string{"Ann", "Anne", "Anna"}; !equal(names(a), want) {
		t.Errorf("order = %v, want %v", names(a), want)
	}
	if want := []string{"Ann", "Anna", "Anne"}; !equal(names(b), want) {
		t.Errorf("order = %v, want %v", names(b), want)
	}
}

func TestRank_CaseAndWhitespaceInsensitive(t *testing.T) {
	t.Parallel()

	got := match.Rank("  ALICE\t ", entries("alice"))
	if got[0].Distance != 0 {
		t.Errorf("distance = %d, want 0", got[0].Distance)
	}
}

func TestRank_DropsDuplicateIdentities(t *testing.T) {
	t.Parallel()

	dir := []contact.Entry{
		{ID: "1", DisplayName: "Alice"},
		{ID: "2", DisplayName: "Bob"},
		{ID: "1", DisplayName: "Alice (work)"},
	}
	got := match.Rank("alice", dir)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(got), names(got))
	}
	if got[0].Entry.ID != "1" || got[0].DisplayName() != "Alice" {
		t.Errorf("first = %+v, want first occurrence of id 1", got[0].Entry)
	}
}

func TestRank_TokenWindows(t *testing.T) {
	t.Parallel()

	dir := entries("Alice Smith", "Alicia Jones")

	plain := match.New().Rank("alice", dir)
	if plain[0].DisplayName() != "Alice Smith" || plain[0].Distance != 6 {
		t.Errorf("plain best = %s/%d, want Alice Smith/6", plain[0].DisplayName(), plain[0].Distance)
	}

	windowed := match.New(match.WithTokenWindows()).Rank("alice", dir)
	if windowed[0].DisplayName() != "Alice Smith" || windowed[0].Distance != 0 {
		t.Errorf("windowed best = %s/%d, want Alice Smith/0", windowed[0].DisplayName(), windowed[0].Distance)
	}
	if windowed[1].Distance != 2 {
		t.Errorf("Alicia Jones distance = %d, want 2", windowed[1].Distance)
	}

	surname := match.New(match.WithTokenWindows()).Rank("smith", dir)
	if surname[0].Distance != 0 {
		t.Errorf("surname distance = %d, want 0", surname[0].Distance)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Alice", "alice"},
		{"  Alice   Smith ", "alice smith"},
		{"ＡＬＩＣＥ", "alice"},
		{"Al\x00ice", "alice"},
		{"a\tb\nc", "a b c"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := match.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
