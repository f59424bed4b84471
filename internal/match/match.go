// Package match ranks contact directory entries against a spoken or typed name
// query.
//
// Ranking uses the Levenshtein edit distance between the normalised query and
// each entry's normalised display name. Normalisation is NFKC folding, control
// character removal, whitespace trimming/collapsing and lower-casing, so
// "  ALICE\tsmith " and "alice smith" compare equal.
//
// The result is sorted ascending by distance with a stable sort: entries at the
// same distance keep the order in which the directory returned them. The
// candidate selector relies on that order when it decides whether the best
// candidate is tied with its neighbour, so it must never be replaced by an
// unstable sort.
//
// The Matcher never filters by distance and never fails; an empty directory
// yields an empty ranking.
package match

import (
	"slices"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/unicode/norm"

	"github.com/MrWong99/telephonist/pkg/contact"
)

// Candidate is a directory entry scored against a query.
type Candidate struct {
	// Entry is the underlying directory entry.
	Entry contact.Entry

	// Distance is the edit distance between the query and the entry's display
	// name. Lower is better; 0 is an exact (normalised) match.
	Distance int
}

// DisplayName is a shorthand for c.Entry.DisplayName.
func (c Candidate) DisplayName() string {
	return c.Entry.DisplayName
}

// Ranked is a candidate list sorted ascending by distance, ties in directory
// order.
type Ranked []Candidate

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithTokenWindows makes the matcher also compare the query against every
// window of consecutive name words that has as many words as the query, and
// keep the smallest distance. With it, "alice" scores 0 against
// "Alice Smith" instead of 6. Disabled by default.
func WithTokenWindows() Option {
	return func(m *Matcher) {
		m.tokenWindows = true
	}
}

// Matcher ranks directory entries. It is read-only after construction and
// safe for concurrent use.
type Matcher struct {
	tokenWindows bool
}

// New returns a [Matcher] configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Rank scores every entry against query and returns them sorted ascending by
// distance. Entries sharing an ID with an earlier entry are dropped.
func (m *Matcher) Rank(query string, entries []contact.Entry) Ranked {
	q := Normalize(query)
	qTokens := strings.Fields(q)

	ranked := make(Ranked, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.ID != "" {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
		}
		ranked = append(ranked, Candidate{
			Entry:    e,
			Distance: m.distance(q, qTokens, Normalize(e.DisplayName)),
		})
	}

	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		return a.Distance - b.Distance
	})
	return ranked
}

// Rank ranks entries with a default [Matcher].
func Rank(query string, entries []contact.Entry) Ranked {
	return New().Rank(query, entries)
}

// distance returns the edit distance between the normalised query and name.
func (m *Matcher) distance(query string, queryTokens []string, name string) int {
	best := matchr.Levenshtein(query, name)
	if !m.tokenWindows || len(queryTokens) == 0 {
		return best
	}

	nameTokens := strings.Fields(name)
	n := len(queryTokens)
	for i := 0; i+n <= len(nameTokens); i++ {
		window := strings.Join(nameTokens[i:i+n], " ")
		if d := matchr.Levenshtein(query, window); d < best {
			best = d
		}
	}
	return best
}

// Normalize folds s into the form used for distance computation. It is
// deterministic and side-effect free.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
