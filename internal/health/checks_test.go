package health

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/telephonist/internal/resilience"
	"github.com/MrWong99/telephonist/pkg/contact/mock"
)

func TestDirectoryCheck(t *testing.T) {
	t.Parallel()

	ok := DirectoryCheck("directory", &mock.Directory{})
	if err := ok.Check(context.Background()); err != nil {
		t.Errorf("empty directory check = %v, want nil", err)
	}

	failing := DirectoryCheck("directory", &mock.Directory{LookupErr: errors.New("db down")})
	if err := failing.Check(context.Background()); err == nil {
		t.Error("failing directory check = nil, want error")
	}
	if failing.Name != "directory" {
		t.Errorf("Name = %q", failing.Name)
	}
}

func TestBackendsCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		statuses []resilience.BackendStatus
		wantErr  bool
	}{
		{"none", nil, false},
		{"all closed", []resilience.BackendStatus{{Name: "pg", State: resilience.StateClosed}, {Name: "file", State: resilience.StateClosed}}, false},
		{"one open", []resilience.BackendStatus{{Name: "pg", State: resilience.StateOpen}, {Name: "file", State: resilience.StateClosed}}, false},
		{"half open counts as usable", []resilience.BackendStatus{{Name: "pg", State: resilience.StateHalfOpen}}, false},
		{"all open", []resilience.BackendStatus{{Name: "pg", State: resilience.StateOpen}, {Name: "file", State: resilience.StateOpen}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := BackendsCheck("breakers", func() []resilience.BackendStatus { return tt.statuses })
			err := c.Check(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "pg, file") {
				t.Errorf("err = %q, want both names", err)
			}
		})
	}
}
