package directory

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/telephonist/internal/observe"
	"github.com/MrWong99/telephonist/pkg/contact"
)

// Instrumented wraps a [contact.Directory] and records call durations and
// failures under a backend label.
type Instrumented struct {
	inner   contact.Directory
	backend string
	metrics *observe.Metrics
}

var _ contact.Directory = (*Instrumented)(nil)

// Instrument wraps d. A nil m uses [observe.DefaultMetrics].
func Instrument(d contact.Directory, backend string, m *observe.Metrics) *Instrumented {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Instrumented{inner: d, backend: backend, metrics: m}
}

// Lookup implements [contact.Directory].
func (i *Instrumented) Lookup(ctx context.Context, nameQuery string) ([]contact.Entry, error) {
	start := time.Now()
	entries, err := i.inner.Lookup(ctx, nameQuery)
	i.record(ctx, "lookup", start, err)
	return entries, err
}

// NumbersOf implements [contact.Directory].
func (i *Instrumented) NumbersOf(ctx context.Context, e contact.Entry) ([]string, error) {
	start := time.Now()
	numbers, err := i.inner.NumbersOf(ctx, e)
	i.record(ctx, "numbers_of", start, err)
	return numbers, err
}

func (i *Instrumented) record(ctx context.Context, op string, start time.Time, err error) {
	i.metrics.DirectoryDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("backend", i.backend), observe.Attr("op", op)))
	if err != nil {
		i.metrics.RecordDirectoryError(ctx, i.backend, op)
	}
}
