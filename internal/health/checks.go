package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/telephonist/internal/resilience"
	"github.com/MrWong99/telephonist/pkg/contact"
)

// DirectoryCheck passes when d answers a lookup. An empty directory is still
// ready.
func DirectoryCheck(name string, d contact.Directory) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			_, err := d.Lookup(ctx, "")
			return err
		},
	}
}

// BackendsCheck passes while at least one backend reported by backends has a
// breaker that is not open.
func BackendsCheck(name string, backends func() []resilience.BackendStatus) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			var open []string
			statuses := backends()
			for _, b := range statuses {
				if b.State == resilience.StateOpen {
					open = append(open, b.Name)
				}
			}
			if len(statuses) > 0 && len(open) == len(statuses) {
				return fmt.Errorf("all circuits open: %s", strings.Join(open, ", "))
			}
			return nil
		},
	}
}
