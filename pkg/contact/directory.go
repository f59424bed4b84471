// Package contact defines the Directory interface through which the telephone
// skill reads contacts.
//
// A Directory wraps an external contact store (a YAML file, a PostgreSQL table,
// a phone's address book exposed over some bridge) and presents it as an
// ordered sequence of entries. The order in which Lookup returns entries is the
// "directory order" used to break distance ties during ranking, so
// implementations must return entries in a deterministic order.
//
// Implementations must be safe for concurrent use.
package contact

import "context"

// Entry is a single contact as seen by the ranking core.
type Entry struct {
	// ID uniquely identifies the contact inside its directory. Two entries with
	// the same ID refer to the same underlying contact.
	ID string

	// DisplayName is the human-readable name matched against the user's query.
	DisplayName string
}

// Directory is the abstraction over any contact store.
type Directory interface {
	// Lookup returns the contacts that may be referents of nameQuery, in stable
	// directory order. Implementations are free to return the entire directory;
	// ranking and filtering happen in the caller.
	//
	// An empty result is not an error.
	Lookup(ctx context.Context, nameQuery string) ([]Entry, error)

	// NumbersOf returns the phone numbers associated with entry, in the store's
	// preferred order. A contact without numbers yields an empty slice and a nil
	// error.
	NumbersOf(ctx context.Context, entry Entry) ([]string, error)
}
