// Package effect describes the externally visible actions a dialogue turn
// produces: spoken messages, displayed results and placed calls.
//
// The dialogue core only builds [Effect] values. Frontends execute them with
// a [Performer], which hands each step to the matching sink in order.
package effect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/telephonist/pkg/dialer"
)

// StepKind tags a [Step].
type StepKind string

const (
	// StepSpeak asks the speech channel to say Message.
	StepSpeak StepKind = "speak"

	// StepDisplay asks the display channel to show Rows or, when Rows is
	// empty, the Message block.
	StepDisplay StepKind = "display"

	// StepPlaceCall commits a call to Number.
	StepPlaceCall StepKind = "place_call"
)

// Row is one line of a displayed result set.
type Row struct {
	// Name is the contact name. It is empty on secondary rows that list a
	// further number of the contact named on a previous row.
	Name string `json:"name,omitempty"`

	// Number is the phone number shown on this row.
	Number string `json:"number"`

	// Clickable reports whether selecting the row commits a call to Number.
	Clickable bool `json:"clickable"`
}

// Step is a single action inside an [Effect].
type Step struct {
	Kind StepKind `json:"kind"`

	// Message is set for StepSpeak and for message-block StepDisplay steps.
	Message string `json:"message,omitempty"`

	// Detail is an optional second line under a displayed message block.
	Detail string `json:"detail,omitempty"`

	// Rows is set for result-set StepDisplay steps.
	Rows []Row `json:"rows,omitempty"`

	// Number is set for StepPlaceCall.
	Number string `json:"number,omitempty"`
}

// Effect is an ordered sequence of steps. The zero value does nothing.
type Effect struct {
	Steps []Step `json:"steps"`
}

// Speak returns a step that says message.
func Speak(message string) Step {
	return Step{Kind: StepSpeak, Message: message}
}

// ShowMessage returns a step that displays a message block with an optional
// detail line.
func ShowMessage(message, detail string) Step {
	return Step{Kind: StepDisplay, Message: message, Detail: detail}
}

// ShowRows returns a step that displays a result set.
func ShowRows(rows []Row) Step {
	return Step{Kind: StepDisplay, Rows: rows}
}

// PlaceCall returns a step that calls number.
func PlaceCall(number string) Step {
	return Step{Kind: StepPlaceCall, Number: number}
}

// Of builds an Effect from steps.
func Of(steps ...Step) Effect {
	return Effect{Steps: steps}
}

// Then returns a new Effect with other's steps appended to e's.
func (e Effect) Then(other Effect) Effect {
	steps := make([]Step, 0, len(e.Steps)+len(other.Steps))
	steps = append(steps, e.Steps...)
	steps = append(steps, other.Steps...)
	return Effect{Steps: steps}
}

// IsZero reports whether e has no steps.
func (e Effect) IsZero() bool {
	return len(e.Steps) == 0
}

// Spoken returns the messages of all speak steps, in order.
func (e Effect) Spoken() []string {
	var out []string
	for _, s := range e.Steps {
		if s.Kind == StepSpeak {
			out = append(out, s.Message)
		}
	}
	return out
}

// Calls returns the numbers of all place-call steps, in order.
func (e Effect) Calls() []string {
	var out []string
	for _, s := range e.Steps {
		if s.Kind == StepPlaceCall {
			out = append(out, s.Number)
		}
	}
	return out
}

// Speaker is the spoken-message channel.
type Speaker interface {
	Speak(ctx context.Context, message string) error
}

// Display is the visual channel. It receives either a message block or a
// result set per call.
type Display interface {
	Show(ctx context.Context, step Step) error
}

// Performer executes effects against a set of sinks. Any sink may be nil, in
// which case steps for it are skipped.
type Performer struct {
	Speaker    Speaker
	Display    Display
	Dispatcher dialer.Dispatcher
}

// Perform runs every step of e in order. A failing sink is logged and does
// not stop later steps; the joined failures are returned for the caller to
// count or log.
func (p *Performer) Perform(ctx context.Context, e Effect) error {
	var errs []error
	for i, s := range e.Steps {
		var err error
		switch s.Kind {
		case StepSpeak:
			if p.Speaker != nil {
				err = p.Speaker.Speak(ctx, s.Message)
			}
		case StepDisplay:
			if p.Display != nil {
				err = p.Display.Show(ctx, s)
			}
		case StepPlaceCall:
			if p.Dispatcher != nil {
				err = p.Dispatcher.PlaceCall(ctx, s.Number)
			}
		default:
			err = fmt.Errorf("unknown step kind %q", s.Kind)
		}
		if err != nil {
			slog.Warn("effect: step failed", "step", i, "kind", s.Kind, "err", err)
			errs = append(errs, fmt.Errorf("effect: step %d (%s): %w", i, s.Kind, err))
		}
	}
	return errors.Join(errs...)
}
