package resilience

import (
	"context"

	"github.com/MrWong99/telephonist/pkg/contact"
)

// DirectoryFallback implements [contact.Directory] with automatic failover
// across several directory backends. Each backend has its own circuit breaker.
//
// Entry IDs must mean the same contact in every backend, since NumbersOf may
// be served by a different backend than the Lookup that produced the entry.
type DirectoryFallback struct {
	group *FallbackGroup[contact.Directory]
}

// Compile-time interface assertion.
var _ contact.Directory = (*DirectoryFallback)(nil)

// NewDirectoryFallback creates a [DirectoryFallback] with primary as the
// preferred backend.
func NewDirectoryFallback(primary contact.Directory, primaryName string, cfg FallbackConfig) *DirectoryFallback {
	return &DirectoryFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional directory as a fallback.
func (f *DirectoryFallback) AddFallback(name string, d contact.Directory) {
	f.group.AddFallback(name, d)
}

// Backends reports the breaker state of every backend.
func (f *DirectoryFallback) Backends() []BackendStatus {
	return f.group.Backends()
}

// Lookup implements [contact.Directory] against the first healthy backend.
func (f *DirectoryFallback) Lookup(ctx context.Context, nameQuery string) ([]contact.Entry, error) {
	return ExecuteWithResult(ctx, f.group, func(d contact.Directory) ([]contact.Entry, error) {
		return d.Lookup(ctx, nameQuery)
	})
}

// NumbersOf implements [contact.Directory] against the first healthy backend.
func (f *DirectoryFallback) NumbersOf(ctx context.Context, e contact.Entry) ([]string, error) {
	return ExecuteWithResult(ctx, f.group, func(d contact.Directory) ([]string, error) {
		return d.NumbersOf(ctx, e)
	})
}
