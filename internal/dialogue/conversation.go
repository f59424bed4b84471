package dialogue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/telephonist/internal/observe"
)

// Conversation owns the [State] of one conversation and serialises its turns.
// All methods are safe for concurrent use; concurrent turns on the same
// conversation are processed one after another. [Conversation.LastTurn] and
// [Conversation.Awaiting] never wait for a running turn.
type Conversation struct {
	id     string
	engine *Engine

	mu    sync.Mutex
	state State

	lastTurn atomic.Int64 // unix nanoseconds, 0 before the first turn
	awaiting atomic.Bool
}

// NewConversation returns an idle conversation with the given id.
func NewConversation(id string, engine *Engine) *Conversation {
	return &Conversation{id: id, engine: engine}
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.id }

// Turn processes one input.
func (c *Conversation) Turn(ctx context.Context, input string) (Reply, error) {
	return c.TurnAlternatives(ctx, []string{input})
}

// TurnAlternatives processes one utterance given as several recogniser
// hypotheses, best first.
func (c *Conversation) TurnAlternatives(ctx context.Context, alternatives []string) (Reply, error) {
	ctx, span := observe.StartTurn(ctx, c.id)
	defer span.End()

	c.touch()
	c.mu.Lock()
	defer c.mu.Unlock()

	next, reply, err := c.engine.ProcessAlternatives(ctx, c.state, alternatives)
	c.state = next
	c.awaiting.Store(next.Awaiting())
	c.touch()
	if err != nil {
		span.RecordError(err)
	}
	return reply, err
}

// Snapshot returns a copy of the current state.
func (c *Conversation) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	if st.Pending != nil {
		p := *st.Pending
		if p.ConfirmCall != nil {
			cc := *p.ConfirmCall
			p.ConfirmCall = &cc
		}
		st.Pending = &p
	}
	return st
}

// LastTurn returns when the latest turn started or finished, whichever is
// later, or the zero time before the first turn.
func (c *Conversation) LastTurn() time.Time {
	ns := c.lastTurn.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Awaiting reports whether the last finished turn left a continuation
// pending.
func (c *Conversation) Awaiting() bool { return c.awaiting.Load() }

func (c *Conversation) touch() { c.lastTurn.Store(time.Now().UnixNano()) }
