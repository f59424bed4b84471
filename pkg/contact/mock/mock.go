// Package mock provides a test double for the contact.Directory interface.
//
// Example:
//
//	d := &mock.Directory{
//	    Entries: []contact.Entry{{ID: "1", DisplayName: "Alice Smith"}},
//	    Numbers: map[string][]string{"1": {"111"}},
//	}
//	entries, _ := d.Lookup(ctx, "alice")
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/telephonist/pkg/contact"
)

// LookupCall records a single invocation of Lookup.
type LookupCall struct {
	// Query is the name query passed to Lookup.
	Query string
}

// Directory is a mock implementation of contact.Directory.
type Directory struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Entries is returned by Lookup, in order.
	Entries []contact.Entry

	// Numbers maps an entry ID to the numbers returned by NumbersOf. Missing
	// IDs yield an empty slice.
	Numbers map[string][]string

	// LookupErr, if non-nil, is returned by Lookup.
	LookupErr error

	// NumbersErr, if non-nil, is returned by NumbersOf.
	NumbersErr error

	// --- Call records ---

	// LookupCalls records every call to Lookup in order.
	LookupCalls []LookupCall

	// NumbersOfCalls records the entry IDs passed to NumbersOf in order.
	NumbersOfCalls []string
}

var _ contact.Directory = (*Directory)(nil)

// Lookup implements contact.Directory.
func (d *Directory) Lookup(_ context.Context, nameQuery string) ([]contact.Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.LookupCalls = append(d.LookupCalls, LookupCall{Query: nameQuery})
	if d.LookupErr != nil {
		return nil, d.LookupErr
	}
	return slices.Clone(d.Entries), nil
}

// NumbersOf implements contact.Directory.
func (d *Directory) NumbersOf(_ context.Context, entry contact.Entry) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.NumbersOfCalls = append(d.NumbersOfCalls, entry.ID)
	if d.NumbersErr != nil {
		return nil, d.NumbersErr
	}
	return slices.Clone(d.Numbers[entry.ID]), nil
}

// Reset clears all recorded calls.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.LookupCalls = nil
	d.NumbersOfCalls = nil
}
