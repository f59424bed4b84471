// Package dialogue implements the turn loop of a conversation: a two-state
// machine that either hands the input to the continuation a skill left
// behind, or routes it to a skill by intent.
//
// The engine is stateless. Each call to [Engine.Process] takes the
// conversation [State] and returns the next one, so turn sequences can be
// tested by passing values around. [Conversation] wraps one State behind a
// mutex for frontends that need a single owner per conversation.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/telephonist/internal/effect"
	"github.com/MrWong99/telephonist/internal/observe"
)

// ErrNoRoute is returned by [Engine.Route] when no skill is registered for
// the turn's intent.
var ErrNoRoute = errors.New("dialogue: no skill for intent")

// Status describes how a turn was handled.
type Status int

const (
	// StatusUnrouted means no recogniser accepted the input and nothing
	// happened.
	StatusUnrouted Status = iota

	// StatusRouted means a skill handled the input via the intent router.
	StatusRouted

	// StatusContinued means the pending continuation accepted the input.
	StatusContinued

	// StatusDropped means the pending continuation rejected the input and
	// the input was discarded.
	StatusDropped
)

// String returns the status as used in logs and metrics.
func (s Status) String() string {
	switch s {
	case StatusUnrouted:
		return "unrouted"
	case StatusRouted:
		return "routed"
	case StatusContinued:
		return "continued"
	case StatusDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Reply is the outcome of a turn.
type Reply struct {
	Status Status `json:"status"`

	// Effect is what the frontend should say, show and do.
	Effect effect.Effect `json:"effect"`

	// Next, when non-nil, becomes the pending continuation. It replaces
	// whatever was pending before.
	Next *Continuation `json:"next,omitempty"`
}

// Skill handles turns routed to it by intent.
type Skill interface {
	Handle(ctx context.Context, turn Turn) (Reply, error)
}

// Confirmer answers a [KindConfirmCall] continuation. answer carries the
// "yes" or "no" intent recognised by the confirmation grammar.
type Confirmer interface {
	Confirm(ctx context.Context, call ConfirmCall, answer Turn) (Reply, error)
}

// Option configures an [Engine].
type Option func(*Engine)

// WithSkill registers s for turns whose IntentID equals intent. A later
// registration for the same intent replaces the earlier one.
func WithSkill(intent string, s Skill) Option {
	return func(e *Engine) { e.skills[intent] = s }
}

// WithConfirmation binds [KindConfirmCall] continuations to the yes/no
// grammar and the confirmer that acts on the answer.
func WithConfirmation(yesNo Recognizer, c Confirmer) Option {
	return func(e *Engine) {
		e.yesNo = yesNo
		e.confirmer = c
	}
}

// WithRerouteOnReject sends input rejected by a pending continuation on to
// the intent router in the same turn instead of dropping it.
func WithRerouteOnReject() Option {
	return func(e *Engine) { e.reroute = true }
}

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine processes turns. It is safe for concurrent use; it holds no
// per-conversation data.
type Engine struct {
	router    Recognizer
	skills    map[string]Skill
	yesNo     Recognizer
	confirmer Confirmer
	reroute   bool
	metrics   *observe.Metrics
}

// New creates an Engine that recognises idle input with router.
func New(router Recognizer, opts ...Option) *Engine {
	e := &Engine{
		router: router,
		skills: make(map[string]Skill),
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Process runs one turn. The pending continuation of st, if any, is cleared
// before anything else happens and is offered input exactly once. The
// returned State holds the continuation installed by this turn, if any.
//
// An error is returned only when ctx is done or a handler fails; the
// returned State is still the one to keep.
func (e *Engine) Process(ctx context.Context, st State, input string) (State, Reply, error) {
	return e.ProcessAlternatives(ctx, st, []string{input})
}

// ProcessAlternatives is [Engine.Process] for recognisers that return several
// hypotheses per utterance. Alternatives are tried in order, first by the
// pending continuation and then by the router; the first accepted one wins.
// The pending continuation is consumed once for the whole turn, not per
// alternative.
func (e *Engine) ProcessAlternatives(ctx context.Context, st State, alternatives []string) (State, Reply, error) {
	if err := ctx.Err(); err != nil {
		return st, Reply{}, err
	}
	start := time.Now()

	pending := st.Pending
	st.Pending = nil

	reply, err := e.turn(ctx, pending, alternatives)
	if err == nil && reply.Next != nil {
		if verr := reply.Next.Validate(); verr != nil {
			observe.Logger(ctx).Warn("dialogue: discarding invalid continuation", "err", verr)
			reply.Next = nil
		} else {
			st.Pending = reply.Next
			e.metrics.RecordContinuation(ctx, string(reply.Next.Kind), "installed")
		}
	}

	e.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	e.metrics.RecordTurn(ctx, reply.Status.String())
	return st, reply, err
}

func (e *Engine) turn(ctx context.Context, pending *Continuation, alternatives []string) (Reply, error) {
	if pending != nil {
		kind := string(pending.Kind)
		rec, handle, err := e.bind(pending)
		if err != nil {
			observe.Logger(ctx).Warn("dialogue: dropping unusable continuation", "kind", kind, "err", err)
		} else {
			for _, in := range alternatives {
				t, ok := rec.Recognize(in)
				if !ok {
					continue
				}
				e.metrics.RecordContinuation(ctx, kind, "consumed")
				r, err := handle(ctx, t)
				r.Status = StatusContinued
				return r, err
			}
		}
		e.metrics.RecordContinuation(ctx, kind, "rejected")
		observe.Logger(ctx).Debug("dialogue: continuation rejected input", "kind", kind, "reroute", e.reroute)
		if !e.reroute {
			return Reply{Status: StatusDropped}, nil
		}
	}

	for _, in := range alternatives {
		t, ok := e.router.Recognize(in)
		if !ok {
			continue
		}
		r, err := e.Route(ctx, t)
		if errors.Is(err, ErrNoRoute) {
			observe.Logger(ctx).Debug("dialogue: recognised intent has no skill", "intent", t.IntentID)
			continue
		}
		r.Status = StatusRouted
		return r, err
	}
	return Reply{Status: StatusUnrouted}, nil
}

// Route hands t to the skill registered for its intent. Handlers that want
// fresh routing of their input may call it directly.
func (e *Engine) Route(ctx context.Context, t Turn) (Reply, error) {
	s, ok := e.skills[t.IntentID]
	if !ok {
		return Reply{}, fmt.Errorf("%w %q", ErrNoRoute, t.IntentID)
	}
	r, err := s.Handle(ctx, t)
	if err != nil {
		return r, fmt.Errorf("dialogue: skill %q: %w", t.IntentID, err)
	}
	return r, nil
}

// bind resolves a continuation to the recogniser that accepts its answer and
// the handler that acts on it.
func (e *Engine) bind(c *Continuation) (Recognizer, func(context.Context, Turn) (Reply, error), error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	switch c.Kind {
	case KindConfirmCall:
		if e.yesNo == nil || e.confirmer == nil {
			return nil, nil, errors.New("dialogue: no confirmation handler configured")
		}
		call := *c.ConfirmCall
		return e.yesNo, func(ctx context.Context, t Turn) (Reply, error) {
			r, err := e.confirmer.Confirm(ctx, call, t)
			if err != nil {
				return r, fmt.Errorf("dialogue: confirm call: %w", err)
			}
			return r, nil
		}, nil
	default:
		return nil, nil, fmt.Errorf("dialogue: unknown continuation kind %q", c.Kind)
	}
}
