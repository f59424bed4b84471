package match_test

import (
	"testing"

	"github.com/MrWong99/telephonist/internal/match"
)

func TestCorrector_Correct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		query  string
		names  []string
		want   string
		wantOK bool
	}{
		{name: "sounds alike", query: "elder nacks", names: []string{"Eldrinax", "Grimjaw"}, want: "Eldrinax", wantOK: true},
		{name: "misspelt full name", query: "alise smyth", names: []string{"Bob Jones", "Alice Smith"}, want: "Alice Smith", wantOK: true},
		{name: "case and spacing", query: "  GRIMJAW ", names: []string{"Eldrinax", "Grimjaw"}, want: "Grimjaw", wantOK: true},
		{name: "nothing close", query: "hello", names: []string{"Eldrinax", "Grimjaw"}, want: "hello", wantOK: false},
		{name: "empty query", query: "", names: []string{"Alice"}, want: "", wantOK: false},
		{name: "empty directory", query: "alice", names: nil, want: "alice", wantOK: false},
	}

	c := match.NewCorrector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, score, ok := c.Correct(tt.query, tt.names)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Correct(%q) = %q, %v; want %q, %v", tt.query, got, ok, tt.want, tt.wantOK)
			}
			if !ok && score != 0 {
				t.Errorf("score = %f, want 0 without a correction", score)
			}
			if ok && score < 0.7 {
				t.Errorf("score = %f, want >= 0.7", score)
			}
		})
	}
}

func TestCorrector_Thresholds(t *testing.T) {
	t.Parallel()

	c := match.NewCorrector(match.WithPhoneticThreshold(0.99), match.WithFuzzyThreshold(0.99))
	if got, _, ok := c.Correct("alise smyth", []string{"Alice Smith"}); ok {
		t.Errorf("strict corrector replaced the query with %q", got)
	}
}
