// Package observe provides application-wide observability primitives for
// Telephonist: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Telephonist metrics.
const meterName = "github.com/MrWong99/telephonist"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TurnDuration tracks how long one dialogue turn takes end to end,
	// including directory lookups.
	TurnDuration metric.Float64Histogram

	// DirectoryDuration tracks contact directory call latency. Use with
	// attributes:
	//   attribute.String("backend", ...), attribute.String("op", ...)
	DirectoryDuration metric.Float64Histogram

	// --- Counters ---

	// Turns counts processed turns. Use with attribute:
	//   attribute.String("status", ...)
	Turns metric.Int64Counter

	// Selections counts candidate selector outcomes. Use with attribute:
	//   attribute.String("outcome", ...)
	Selections metric.Int64Counter

	// Continuations counts continuation lifecycle events. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("event", ...)
	Continuations metric.Int64Counter

	// CallsPlaced counts dispatched calls. Use with attributes:
	//   attribute.String("dispatcher", ...), attribute.String("status", ...)
	CallsPlaced metric.Int64Counter

	// --- Error counters ---

	// DirectoryErrors counts failed directory calls. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("op", ...)
	DirectoryErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveConversations tracks the number of live conversations across all
	// frontends.
	ActiveConversations metric.Int64UpDownCounter

	// DirectoryEntries tracks the number of contacts currently loaded by the
	// file-backed directory.
	DirectoryEntries metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for turn
// and directory latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TurnDuration, err = m.Float64Histogram("telephonist.turn.duration",
		metric.WithDescription("Latency of one dialogue turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DirectoryDuration, err = m.Float64Histogram("telephonist.directory.duration",
		metric.WithDescription("Latency of contact directory calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Turns, err = m.Int64Counter("telephonist.turns",
		metric.WithDescription("Total processed turns by status."),
	); err != nil {
		return nil, err
	}
	if met.Selections, err = m.Int64Counter("telephonist.selections",
		metric.WithDescription("Total candidate selections by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Continuations, err = m.Int64Counter("telephonist.continuations",
		metric.WithDescription("Continuation events by kind and event."),
	); err != nil {
		return nil, err
	}
	if met.CallsPlaced, err = m.Int64Counter("telephonist.calls",
		metric.WithDescription("Total dispatched calls by dispatcher and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.DirectoryErrors, err = m.Int64Counter("telephonist.directory.errors",
		metric.WithDescription("Total directory errors by backend and operation."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveConversations, err = m.Int64UpDownCounter("telephonist.active_conversations",
		metric.WithDescription("Number of live conversations."),
	); err != nil {
		return nil, err
	}
	if met.DirectoryEntries, err = m.Int64UpDownCounter("telephonist.directory.entries",
		metric.WithDescription("Number of contacts loaded from the contacts file."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("telephonist.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTurn records a processed turn with its status.
func (m *Metrics) RecordTurn(ctx context.Context, status string) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordSelection records a candidate selector outcome.
func (m *Metrics) RecordSelection(ctx context.Context, outcome string) {
	m.Selections.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordContinuation records a continuation event ("installed", "consumed"
// or "rejected") for the given continuation kind.
func (m *Metrics) RecordContinuation(ctx context.Context, kind, event string) {
	m.Continuations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("event", event),
		),
	)
}

// RecordCall records a dispatched call.
func (m *Metrics) RecordCall(ctx context.Context, dispatcher, status string) {
	m.CallsPlaced.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("dispatcher", dispatcher),
			attribute.String("status", status),
		),
	)
}

// RecordDirectoryError records a failed directory call.
func (m *Metrics) RecordDirectoryError(ctx context.Context, backend, op string) {
	m.DirectoryErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("op", op),
		),
	)
}
