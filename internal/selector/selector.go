// Package selector decides what the telephone skill does with a ranked
// candidate list: call the best candidate straight away (after a yes/no
// confirmation), present a short list, or report that nobody matched.
//
// The decision is a pure function of the ranking and the numbers each
// candidate has. Presentation (speech, display rows, continuations) is left to
// the caller.
package selector

import "github.com/MrWong99/telephonist/internal/match"

const (
	// MaxPresented is the largest number of usable candidates ever shown.
	MaxPresented = 5

	// DirectCallMaxDistance is the exclusive upper bound on the distance of a
	// candidate that may be called without disambiguation.
	DirectCallMaxDistance = 3
)

// Kind tags an [Outcome].
type Kind int

const (
	// NoMatch means no ranked candidate had a phone number.
	NoMatch Kind = iota

	// Presented means a list of up to [MaxPresented] candidates should be
	// shown to the user.
	Presented

	// DirectCall means the best candidate is unambiguous and has exactly one
	// number; the caller proposes calling it.
	DirectCall
)

// String returns the outcome kind as used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case NoMatch:
		return "no_match"
	case Presented:
		return "presented"
	case DirectCall:
		return "direct_call"
	default:
		return "unknown"
	}
}

// Shown is a presented candidate together with all of its numbers.
type Shown struct {
	Candidate match.Candidate
	Numbers   []string
}

// Outcome is the result of [Select]. Exactly the fields belonging to Kind are
// set: Name and Number for DirectCall, Shown for Presented.
type Outcome struct {
	Kind   Kind
	Name   string
	Number string
	Shown  []Shown
}

// NumbersFunc returns the numbers of a candidate. An empty result makes the
// candidate unusable.
type NumbersFunc func(match.Candidate) []string

// Select walks ranked in order and applies the direct-call / list policy:
//
//   - candidates without numbers are skipped and never occupy a slot;
//   - the first usable candidate is called directly when its distance is below
//     [DirectCallMaxDistance], it has exactly one number, and the next ranked
//     candidate (usable or not) is strictly farther away;
//   - otherwise usable candidates are collected until [MaxPresented] is reached
//     or the ranking is exhausted.
//
// numbersOf is called at most once per visited candidate, and not at all for
// candidates after the walk stops.
func Select(ranked match.Ranked, numbersOf NumbersFunc) Outcome {
	var shown []Shown

	for i := 0; len(shown) < MaxPresented && i < len(ranked); i++ {
		c := ranked[i]
		numbers := numbersOf(c)
		if len(numbers) == 0 {
			continue
		}

		if len(shown) == 0 &&
			c.Distance < DirectCallMaxDistance &&
			len(numbers) == 1 &&
			(i+1 >= len(ranked) || ranked[i+1].Distance > c.Distance) {
			return Outcome{
				Kind:   DirectCall,
				Name:   c.DisplayName(),
				Number: numbers[0],
			}
		}

		shown = append(shown, Shown{Candidate: c, Numbers: numbers})
	}

	if len(shown) == 0 {
		return Outcome{Kind: NoMatch}
	}
	return Outcome{Kind: Presented, Shown: shown}
}
