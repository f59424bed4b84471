package match

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// CorrectorOption configures a [Corrector].
type CorrectorOption func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a name that
// sounds like the query needs to replace it. Default: 0.70.
func WithPhoneticThreshold(threshold float64) CorrectorOption {
	return func(c *Corrector) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a name that does
// not sound like the query. Default: 0.85.
func WithFuzzyThreshold(threshold float64) CorrectorOption {
	return func(c *Corrector) { c.fuzzyThreshold = threshold }
}

// Corrector snaps a misrecognised name onto the directory name it most
// likely stands for, so that "ellis smith" becomes "Alice Smith" before
// ranking. Names that share a Double Metaphone code with the query are
// preferred; among them the highest Jaro-Winkler score wins.
//
// A Corrector is read-only after construction and safe for concurrent use.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewCorrector returns a [Corrector] configured with opts.
func NewCorrector(opts ...CorrectorOption) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct returns the name from names that query most likely means. When no
// name clears the thresholds, query is returned unchanged with ok false.
// Ties keep the earlier name.
func (c *Corrector) Correct(query string, names []string) (corrected string, score float64, ok bool) {
	q := Normalize(query)
	if q == "" || len(names) == 0 {
		return query, 0, false
	}
	qTokens := strings.Fields(q)
	qCodes := metaphoneCodes(qTokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, name := range names {
		n := Normalize(name)
		if n == "" {
			continue
		}
		nTokens := strings.Fields(n)
		phonetic := overlaps(qCodes, metaphoneCodes(nTokens))
		s := jaroWinkler(qTokens, nTokens, q, n)

		switch {
		case phonetic && s >= c.phoneticThreshold:
			if !bestPhonetic || s > bestScore {
				best, bestScore, bestPhonetic = name, s, true
			}
		case !phonetic && !bestPhonetic && s >= c.fuzzyThreshold && s > bestScore:
			best, bestScore = name, s
		}
	}

	if best == "" {
		return query, 0, false
	}
	return best, bestScore, true
}

// metaphoneCodes returns the non-empty primary and secondary Double Metaphone
// codes of every token.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// jaroWinkler returns the best of the full-string score, the score with the
// spaces removed and the best word-against-word score.
func jaroWinkler(qTokens, nTokens []string, q, n string) float64 {
	score := matchr.JaroWinkler(q, n, false)

	if len(qTokens) > 1 || len(nTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(qTokens, ""), strings.Join(nTokens, ""), false); s > score {
			score = s
		}
	}
	for _, qt := range qTokens {
		for _, nt := range nTokens {
			if s := matchr.JaroWinkler(qt, nt, false); s > score {
				score = s
			}
		}
	}
	return score
}
