// Package dialer defines the Dispatcher interface that places telephone calls.
//
// Dispatching a call is a fire-and-forget side effect from the dialogue core's
// point of view: the error return exists so adapters can log and count
// failures, but it never changes what the user was told.
package dialer

import (
	"context"
	"strings"
	"unicode"
)

// Dispatcher places outgoing calls.
//
// Implementations must be safe for concurrent use.
type Dispatcher interface {
	// PlaceCall starts a call to number. It should return as soon as the call
	// has been handed off to the underlying telephony system.
	PlaceCall(ctx context.Context, number string) error
}

// DispatcherFunc adapts an ordinary function to the [Dispatcher] interface.
type DispatcherFunc func(ctx context.Context, number string) error

// PlaceCall calls f(ctx, number).
func (f DispatcherFunc) PlaceCall(ctx context.Context, number string) error {
	return f(ctx, number)
}

// TelURI returns the RFC 3966 "tel:" URI for number. Visual separators
// (spaces, dots, dashes, parentheses) are dropped; a leading '+' is kept.
func TelURI(number string) string {
	var b strings.Builder
	b.WriteString("tel:")
	for i, r := range strings.TrimSpace(number) {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case unicode.IsDigit(r), r == '*', r == '#':
			b.WriteRune(r)
		}
	}
	return b.String()
}
