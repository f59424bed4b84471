// Package directory provides the contact stores behind [contact.Directory]:
// an ordered in-memory store fed from a YAML contacts file (optionally
// hot-reloaded) and a PostgreSQL store.
//
// Both stores return the whole directory from Lookup, in a stable order;
// ranking against the query happens in the caller.
//
// All store operations are safe for concurrent use.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/telephonist/pkg/contact"
)

// ErrNotFound is returned by Get and Remove when the requested contact does
// not exist.
var ErrNotFound = errors.New("contact not found")

// ErrDuplicateID is returned by Add when a contact with the same ID already
// exists.
var ErrDuplicateID = errors.New("contact with that ID already exists")

// Contact is a directory entry together with its phone numbers.
type Contact struct {
	// ID is a unique identifier. Generated if empty on Add.
	ID string `yaml:"id,omitempty" json:"id"`

	// Name is the display name matched against spoken names.
	Name string `yaml:"name" json:"name"`

	// Numbers are the contact's phone numbers, preferred first.
	Numbers []string `yaml:"numbers,omitempty" json:"numbers,omitempty"`
}

// Entry returns the ranking view of c.
func (c Contact) Entry() contact.Entry {
	return contact.Entry{ID: c.ID, DisplayName: c.Name}
}

// Store is a contact directory that can also be managed.
type Store interface {
	contact.Directory

	// Add creates a contact, generating its ID when empty.
	// Returns [ErrDuplicateID] if a contact with the same ID exists.
	Add(ctx context.Context, c Contact) (Contact, error)

	// Get returns a contact by ID, or [ErrNotFound].
	Get(ctx context.Context, id string) (Contact, error)

	// List returns all contacts in directory order.
	List(ctx context.Context) ([]Contact, error)

	// Remove deletes a contact by ID, or returns [ErrNotFound].
	Remove(ctx context.Context, id string) error
}

// BulkImport adds contacts one at a time and returns how many were added
// before the first error.
func BulkImport(ctx context.Context, s Store, contacts []Contact) (int, error) {
	n := 0
	for _, c := range contacts {
		if _, err := s.Add(ctx, c); err != nil {
			return n, fmt.Errorf("directory: bulk import at index %d (name %q): %w", n, c.Name, err)
		}
		n++
	}
	return n, nil
}
