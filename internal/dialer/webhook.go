package dialer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/telephonist/internal/observe"
	"github.com/MrWong99/telephonist/internal/resilience"
	"github.com/MrWong99/telephonist/pkg/dialer"
)

const defaultTimeout = 10 * time.Second

// ErrEmptyNumber is returned when PlaceCall is given a blank number.
var ErrEmptyNumber = errors.New("dialer: empty number")

// Request is the JSON body POSTed to the webhook.
type Request struct {
	Number string `json:"number"`
	URI    string `json:"uri"`
}

// Option configures a [Webhook].
type Option func(*Webhook)

// WithTimeout sets the per-call timeout. Defaults to 10 s.
func WithTimeout(d time.Duration) Option {
	return func(w *Webhook) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(w *Webhook) { w.header.Set(key, value) }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(w *Webhook) { w.client = c }
}

// WithBreaker tunes the circuit breaker guarding the gateway.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(w *Webhook) { w.breakerCfg = cfg }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(w *Webhook) { w.metrics = m }
}

// Webhook places calls by POSTing a [Request] to a telephony gateway. Any 2xx
// response counts as success. Consecutive failures open a circuit breaker,
// after which calls fail fast with [resilience.ErrCircuitOpen].
type Webhook struct {
	url        string
	client     *http.Client
	header     http.Header
	timeout    time.Duration
	breakerCfg resilience.CircuitBreakerConfig
	breaker    *resilience.CircuitBreaker
	metrics    *observe.Metrics
}

var _ dialer.Dispatcher = (*Webhook)(nil)

// NewWebhook returns a [Webhook] posting to url.
func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:     url,
		client:  http.DefaultClient,
		header:  make(http.Header),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.metrics == nil {
		w.metrics = observe.DefaultMetrics()
	}
	if w.breakerCfg.Name == "" {
		w.breakerCfg.Name = "dialer-webhook"
	}
	w.breaker = resilience.NewCircuitBreaker(w.breakerCfg)
	return w
}

// BreakerState reports the state of the gateway circuit breaker.
func (w *Webhook) BreakerState() resilience.State { return w.breaker.State() }

// PlaceCall implements [dialer.Dispatcher].
func (w *Webhook) PlaceCall(ctx context.Context, number string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return ErrEmptyNumber
	}

	err := w.breaker.ExecuteContext(ctx, func() error { return w.post(ctx, number) })
	status := "ok"
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		status = "circuit_open"
	case err != nil:
		status = "error"
	}
	w.metrics.RecordCall(ctx, "webhook", status)
	if err != nil {
		observe.Logger(ctx).Warn("webhook call failed", "number", number, "err", err)
		return fmt.Errorf("dialer: place call: %w", err)
	}
	observe.Logger(ctx).Info("call handed to gateway", "number", number)
	return nil
}

func (w *Webhook) post(ctx context.Context, number string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	body, err := json.Marshal(Request{Number: number, URI: dialer.TelURI(number)})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = w.header.Clone()
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
