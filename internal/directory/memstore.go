package directory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/telephonist/pkg/contact"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store] that keeps contacts in insertion order.
// The zero value is ready to use.
type MemStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Contact
}

// NewMemStore returns a MemStore holding contacts, in order. It fails on
// duplicate IDs.
func NewMemStore(contacts ...Contact) (*MemStore, error) {
	s := &MemStore{}
	if err := s.Replace(contacts); err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup implements [contact.Directory]. It returns every contact; nameQuery
// is not used for filtering.
func (s *MemStore) Lookup(ctx context.Context, nameQuery string) ([]contact.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contact.Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Entry())
	}
	return out, nil
}

// NumbersOf implements [contact.Directory]. Unknown entries have no numbers.
func (s *MemStore) NumbersOf(ctx context.Context, e contact.Entry) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.byID[e.ID].Numbers), nil
}

// Add implements [Store.Add].
func (s *MemStore) Add(ctx context.Context, c Contact) (Contact, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Numbers = slices.Clone(c.Numbers)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byID == nil {
		s.byID = make(map[string]Contact)
	}
	if _, exists := s.byID[c.ID]; exists {
		return Contact{}, ErrDuplicateID
	}
	s.byID[c.ID] = c
	s.order = append(s.order, c.ID)
	return c, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, id string) (Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return Contact{}, ErrNotFound
	}
	c.Numbers = slices.Clone(c.Numbers)
	return c, nil
}

// List implements [Store.List].
func (s *MemStore) List(ctx context.Context) ([]Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Contact, 0, len(s.order))
	for _, id := range s.order {
		c := s.byID[id]
		c.Numbers = slices.Clone(c.Numbers)
		out = append(out, c)
	}
	return out, nil
}

// Remove implements [Store.Remove].
func (s *MemStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	return nil
}

// Replace swaps the whole content of the store for contacts, in order. On
// error the store is left unchanged.
func (s *MemStore) Replace(contacts []Contact) error {
	order := make([]string, 0, len(contacts))
	byID := make(map[string]Contact, len(contacts))
	for i, c := range contacts {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if _, exists := byID[c.ID]; exists {
			return fmt.Errorf("directory: contact %d (%q): %w", i, c.ID, ErrDuplicateID)
		}
		c.Numbers = slices.Clone(c.Numbers)
		byID[c.ID] = c
		order = append(order, c.ID)
	}

	s.mu.Lock()
	s.order = order
	s.byID = byID
	s.mu.Unlock()
	return nil
}

// Len returns the number of contacts.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
