// Package sttresult decodes the JSON results of a Vosk speech recogniser into
// turn alternatives.
//
// Vosk emits three shapes:
//
//	{"text": "call alice"}                         final, single hypothesis
//	{"alternatives": [{"text": "...", "confidence": 0.9}, ...]}
//	{"partial": "call al"}                         intermediate result
//
// A final result is reduced to its non-empty hypotheses, best first. A final
// result without any is reported as [KindNone].
package sttresult

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned for JSON that is none of the known shapes.
var ErrMalformed = errors.New("sttresult: malformed recogniser result")

// Kind classifies a decoded result.
type Kind int

const (
	// KindNone is a final result in which nothing was understood.
	KindNone Kind = iota

	// KindPartial is an intermediate hypothesis; it must not start a turn.
	KindPartial

	// KindFinal carries one or more alternatives for a turn.
	KindFinal
)

// String returns the kind as used in logs and wire frames.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPartial:
		return "partial"
	case KindFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Result is a decoded recogniser result.
type Result struct {
	Kind Kind

	// Partial is the intermediate text for KindPartial.
	Partial string

	// Alternatives are the non-empty hypotheses for KindFinal, best first.
	Alternatives []string
}

type alternative struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type raw struct {
	Text         *string       `json:"text"`
	Partial      *string       `json:"partial"`
	Alternatives []alternative `json:"alternatives"`
}

// Parse decodes one recogniser result. Alternatives keep the recogniser's
// order, which Vosk already sorts by confidence.
func Parse(data []byte) (Result, error) {
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch {
	case r.Alternatives != nil:
		var alts []string
		for _, a := range r.Alternatives {
			if t := strings.TrimSpace(a.Text); t != "" {
				alts = append(alts, t)
			}
		}
		return final(alts), nil
	case r.Text != nil:
		var alts []string
		if t := strings.TrimSpace(*r.Text); t != "" {
			alts = []string{t}
		}
		return final(alts), nil
	case r.Partial != nil:
		return Result{Kind: KindPartial, Partial: strings.TrimSpace(*r.Partial)}, nil
	default:
		return Result{}, ErrMalformed
	}
}

func final(alts []string) Result {
	if len(alts) == 0 {
		return Result{Kind: KindNone}
	}
	return Result{Kind: KindFinal, Alternatives: alts}
}
