package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/telephonist/internal/dialogue"
	"github.com/MrWong99/telephonist/internal/observe"
)

// ConversationInfo holds metadata about an open conversation.
type ConversationInfo struct {
	// ID is the unique identifier of the conversation. Knowing it is enough
	// to answer a pending confirmation, so it is never serialised.
	ID string `json:"-"`

	// Origin names the frontend that opened it (e.g. "ws", "discord").
	Origin string `json:"origin"`

	// OpenedAt is when the conversation was created.
	OpenedAt time.Time `json:"opened_at"`

	// Awaiting reports whether a confirmation is pending.
	Awaiting bool `json:"awaiting"`
}

type conversationEntry struct {
	conv *dialogue.Conversation
	info ConversationInfo
}

// Conversations tracks the open conversations of all frontends. Every
// conversation shares one [dialogue.Engine] but owns its own state.
// All exported methods are safe for concurrent use.
type Conversations struct {
	engine      *dialogue.Engine
	metrics     *observe.Metrics
	idleTimeout time.Duration
	now         func() time.Time

	mu   sync.Mutex
	byID map[string]conversationEntry
}

// NewConversations returns an empty registry. With a positive idleTimeout,
// [Conversations.Run] closes conversations that saw no turn for that long.
func NewConversations(engine *dialogue.Engine, metrics *observe.Metrics, idleTimeout time.Duration) *Conversations {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Conversations{
		engine:      engine,
		metrics:     metrics,
		idleTimeout: idleTimeout,
		now:         time.Now,
		byID:        make(map[string]conversationEntry),
	}
}

// Open starts a new conversation with a random id.
func (c *Conversations) Open(origin string) *dialogue.Conversation {
	conv, _ := c.GetOrOpen(uuid.NewString(), origin)
	return conv
}

// GetOrOpen returns the conversation with id, opening it if needed. The
// boolean reports whether a new conversation was opened.
func (c *Conversations) GetOrOpen(id, origin string) (*dialogue.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byID[id]; ok {
		return e.conv, false
	}
	conv := dialogue.NewConversation(id, c.engine)
	c.byID[id] = conversationEntry{
		conv: conv,
		info: ConversationInfo{ID: id, Origin: origin, OpenedAt: c.now()},
	}
	c.metrics.ActiveConversations.Add(context.Background(), 1)
	slog.Debug("conversation opened", "conversation", id, "origin", origin)
	return conv, true
}

// Get returns the conversation with id.
func (c *Conversations) Get(id string) (*dialogue.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[id]
	return e.conv, ok
}

// GetFrom returns the conversation with id only if origin opened it.
func (c *Conversations) GetFrom(id, origin string) (*dialogue.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[id]
	if !ok || e.info.Origin != origin {
		return nil, false
	}
	return e.conv, true
}

// Close forgets the conversation with id, dropping any pending continuation.
// It reports whether the conversation existed.
func (c *Conversations) Close(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked(id)
}

// CloseFrom closes the conversation with id only if origin opened it.
func (c *Conversations) CloseFrom(id, origin string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.byID[id]; !ok || e.info.Origin != origin {
		return false
	}
	return c.closeLocked(id)
}

func (c *Conversations) closeLocked(id string) bool {
	if _, ok := c.byID[id]; !ok {
		return false
	}
	delete(c.byID, id)
	c.metrics.ActiveConversations.Add(context.Background(), -1)
	slog.Debug("conversation closed", "conversation", id)
	return true
}

// List returns metadata about every open conversation.
func (c *Conversations) List() []ConversationInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ConversationInfo, 0, len(c.byID))
	for _, e := range c.byID {
		info := e.info
		info.Awaiting = e.conv.Awaiting()
		out = append(out, info)
	}
	return out
}

// Len returns the number of open conversations.
func (c *Conversations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

// CloseIdle closes every conversation whose last activity is older than the
// idle timeout and returns how many it closed. A conversation without turns
// counts from when it was opened. Conversations awaiting a confirmation are
// never closed here.
func (c *Conversations) CloseIdle() int {
	if c.idleTimeout <= 0 {
		return 0
	}
	cutoff := c.now().Add(-c.idleTimeout)

	c.mu.Lock()
	entries := make([]conversationEntry, 0, len(c.byID))
	for _, e := range c.byID {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	var idle []*dialogue.Conversation
	for _, e := range entries {
		if e.conv.Awaiting() {
			continue
		}
		last := e.conv.LastTurn()
		if last.IsZero() {
			last = e.info.OpenedAt
		}
		if last.Before(cutoff) {
			idle = append(idle, e.conv)
		}
	}
	if len(idle) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, conv := range idle {
		// The id may have been closed and reopened in between.
		if e, ok := c.byID[conv.ID()]; ok && e.conv == conv && !conv.Awaiting() {
			c.closeLocked(conv.ID())
			n++
		}
	}
	if n > 0 {
		slog.Info("closed idle conversations", "count", n)
	}
	return n
}

// CloseAll closes every conversation.
func (c *Conversations) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.byID {
		c.closeLocked(id)
	}
}

// Run closes idle conversations periodically until ctx is done. It returns
// immediately when no idle timeout is configured.
func (c *Conversations) Run(ctx context.Context) error {
	if c.idleTimeout <= 0 {
		return nil
	}
	interval := max(c.idleTimeout/4, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.CloseIdle()
		}
	}
}
