// Package dialer provides the [dialer.Dispatcher] backends used by the
// service: a logging dispatcher for development and a webhook dispatcher that
// hands calls to an external telephony gateway.
//
// Typical usage:
//
//	d := dialer.NewWebhook("https://pbx.example.org/call",
//	    dialer.WithTimeout(5*time.Second),
//	    dialer.WithHeader("Authorization", "Bearer "+token),
//	)
//	err := d.PlaceCall(ctx, "+49 30 1234")
package dialer

import (
	"context"

	"github.com/MrWong99/telephonist/internal/observe"
	"github.com/MrWong99/telephonist/pkg/dialer"
)

// LogDispatcher logs every call instead of placing it.
type LogDispatcher struct {
	metrics *observe.Metrics
}

var _ dialer.Dispatcher = (*LogDispatcher)(nil)

// NewLog returns a [LogDispatcher]. A nil m uses [observe.DefaultMetrics].
func NewLog(m *observe.Metrics) *LogDispatcher {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &LogDispatcher{metrics: m}
}

// PlaceCall implements [dialer.Dispatcher]. It never fails.
func (d *LogDispatcher) PlaceCall(ctx context.Context, number string) error {
	observe.Logger(ctx).Info("placing call", "number", number, "uri", dialer.TelURI(number))
	d.metrics.RecordCall(ctx, "log", "ok")
	return nil
}
