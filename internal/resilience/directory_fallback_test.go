package resilience_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/MrWong99/telephonist/internal/resilience"
	"github.com/MrWong99/telephonist/pkg/contact"
	"github.com/MrWong99/telephonist/pkg/contact/mock"
)

func TestDirectoryFallback_FailsOver(t *testing.T) {
	primary := &mock.Directory{LookupErr: errors.New("db down"), NumbersErr: errors.New("db down")}
	secondary := &mock.Directory{
		Entries: []contact.Entry{{ID: "1", DisplayName: "Alice"}},
		Numbers: map[string][]string{"1": {"111"}},
	}
	f := resilience.NewDirectoryFallback(primary, "postgres", resilience.FallbackConfig{})
	f.AddFallback("file", secondary)
	ctx := context.Background()

	entries, err := f.Lookup(ctx, "alice")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !reflect.DeepEqual(entries, secondary.Entries) {
		t.Errorf("Lookup = %+v", entries)
	}
	nums, err := f.NumbersOf(ctx, entries[0])
	if err != nil || !reflect.DeepEqual(nums, []string{"111"}) {
		t.Errorf("NumbersOf = %v, %v", nums, err)
	}
	if len(primary.LookupCalls) != 1 || len(secondary.LookupCalls) != 1 {
		t.Errorf("lookup calls primary=%d secondary=%d, want 1 each", len(primary.LookupCalls), len(secondary.LookupCalls))
	}
}

func TestDirectoryFallback_AllFail(t *testing.T) {
	f := resilience.NewDirectoryFallback(&mock.Directory{LookupErr: errors.New("down")}, "only", resilience.FallbackConfig{})
	if _, err := f.Lookup(context.Background(), "x"); !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
	if got := f.Backends(); len(got) != 1 || got[0].Name != "only" {
		t.Errorf("Backends() = %+v", got)
	}
}

func TestDirectoryFallback_CancelledContext(t *testing.T) {
	d := &mock.Directory{}
	f := resilience.NewDirectoryFallback(d, "only", resilience.FallbackConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Lookup(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(d.LookupCalls) != 0 {
		t.Error("backend called with a cancelled context")
	}
}
