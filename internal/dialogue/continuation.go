package dialogue

import (
	"errors"
	"fmt"
)

// Kind tags a [Continuation].
type Kind string

// KindConfirmCall waits for a yes/no answer to a proposed call.
const KindConfirmCall Kind = "confirm_call"

// ConfirmCall is the payload of a [KindConfirmCall] continuation: the contact
// that was proposed and the number that will be dialled on "yes".
type ConfirmCall struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Continuation claims the next turn of a conversation. It is plain data so
// it can be logged, serialised and compared; the [Engine] binds each kind to
// its recogniser and handler.
type Continuation struct {
	Kind        Kind         `json:"kind"`
	ConfirmCall *ConfirmCall `json:"confirm_call,omitempty"`
}

// NewConfirmCall returns a continuation that asks whether name should be
// called on number.
func NewConfirmCall(name, number string) *Continuation {
	return &Continuation{
		Kind:        KindConfirmCall,
		ConfirmCall: &ConfirmCall{Name: name, Number: number},
	}
}

// Validate reports whether the payload required by Kind is present.
func (c *Continuation) Validate() error {
	switch c.Kind {
	case KindConfirmCall:
		if c.ConfirmCall == nil {
			return errors.New("dialogue: confirm_call continuation without payload")
		}
		if c.ConfirmCall.Number == "" {
			return errors.New("dialogue: confirm_call continuation without number")
		}
		return nil
	default:
		return fmt.Errorf("dialogue: unknown continuation kind %q", c.Kind)
	}
}

// State is everything the engine remembers between turns of one
// conversation. The zero value is the Idle state.
type State struct {
	Pending *Continuation `json:"pending,omitempty"`
}

// Awaiting reports whether a continuation owns the next turn.
func (s State) Awaiting() bool {
	return s.Pending != nil
}
