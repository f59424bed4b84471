// Package mock provides a test double for the dialer.Dispatcher interface.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/telephonist/pkg/dialer"
)

// Dispatcher is a mock implementation of dialer.Dispatcher that records every
// number it was asked to call.
type Dispatcher struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by PlaceCall.
	Err error

	calls []string
}

var _ dialer.Dispatcher = (*Dispatcher)(nil)

// PlaceCall implements dialer.Dispatcher.
func (d *Dispatcher) PlaceCall(_ context.Context, number string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, number)
	return d.Err
}

// Calls returns a copy of all numbers passed to PlaceCall, in order.
func (d *Dispatcher) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.calls)
}
