// Package mcpserver exposes the telephonist as Model Context Protocol tools,
// so an assistant can hold conversations and place calls on a user's behalf.
//
// Four tools are registered:
//   - "converse"           runs one dialogue turn in a conversation.
//   - "call_number"        places a call directly.
//   - "search_contacts"    lists directory matches for a name.
//   - "end_conversation"   closes a conversation and drops its pending question.
//
// The server is served over the MCP Streamable HTTP transport via [Server.Handler].
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/time/rate"

	"github.com/MrWong99/telephonist/internal/app"
	"github.com/MrWong99/telephonist/internal/dialogue"
	"github.com/MrWong99/telephonist/internal/effect"
	"github.com/MrWong99/telephonist/internal/match"
)

// Origin is the conversation origin recorded for MCP conversations.
const Origin = "mcp"

// maxSearchResults caps the result of "search_contacts".
const maxSearchResults = 10

var (
	// ErrUnknownConversation is returned for conversation ids that no MCP
	// client opened, including ids of other frontends.
	ErrUnknownConversation = errors.New("unknown conversation")

	// ErrTooManyTurns is returned when a conversation exceeds its turn rate.
	ErrTooManyTurns = errors.New("too many turns, slow down")
)

// Server is the MCP frontend of an [app.App].
type Server struct {
	app     *app.App
	matcher *match.Matcher
	server  *mcpsdk.Server

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Server with all tools registered.
func New(a *app.App, version string) *Server {
	var opts []match.Option
	if a.Config().Matcher.TokenWindows {
		opts = append(opts, match.WithTokenWindows())
	}
	s := &Server{app: a, matcher: match.New(opts...), limiters: make(map[string]*rate.Limiter)}
	s.server = mcpsdk.NewServer(&mcpsdk.Implementation{Name: "telephonist", Version: version}, nil)
	s.registerTools()
	return s
}

// MCP returns the underlying SDK server, e.g. to connect it to another
// transport.
func (s *Server) MCP() *mcpsdk.Server {
	return s.server
}

// Handler returns the Streamable HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.server }, nil)
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name: "converse",
		Description: "Say something to the telephonist, e.g. \"call Alice\" or \"yes\". " +
			"Pass the conversation_id of a previous result to answer its question; omit it to start a new conversation. " +
			"The result lists what the telephonist said and showed and which calls it placed.",
	}, s.handleConverse)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "call_number",
		Description: "Place a call to a phone number without asking for confirmation.",
	}, s.handleCallNumber)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "search_contacts",
		Description: "Search the contact directory by name and return the closest matches with their numbers.",
	}, s.handleSearch)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "end_conversation",
		Description: "Close a conversation, discarding any question it is waiting on.",
	}, s.handleEnd)
}

// ConverseArgs is the input of "converse".
type ConverseArgs struct {
	ConversationID string `json:"conversation_id,omitempty" jsonschema:"Conversation to continue; omit to start a new one"`
	Text           string `json:"text" jsonschema:"What the user said"`
}

// Display is one displayed block of a turn.
type Display struct {
	Message string       `json:"message,omitempty"`
	Detail  string       `json:"detail,omitempty"`
	Rows    []effect.Row `json:"rows,omitempty"`
}

// ConverseResult is the output of "converse".
type ConverseResult struct {
	ConversationID string    `json:"conversation_id"`
	Status         string    `json:"status"`
	Spoken         []string  `json:"spoken,omitempty"`
	Displayed      []Display `json:"displayed,omitempty"`
	Calls          []string  `json:"calls,omitempty"`
	Awaiting       bool      `json:"awaiting" jsonschema:"Whether the telephonist waits for an answer, e.g. a call confirmation"`
}

// collector records the speech and display steps of an effect.
type collector struct {
	spoken    []string
	displayed []Display
}

func (c *collector) Speak(_ context.Context, message string) error {
	c.spoken = append(c.spoken, message)
	return nil
}

func (c *collector) Show(_ context.Context, step effect.Step) error {
	c.displayed = append(c.displayed, Display{Message: step.Message, Detail: step.Detail, Rows: step.Rows})
	return nil
}

func (s *Server) handleConverse(ctx context.Context, _ *mcpsdk.CallToolRequest, args ConverseArgs) (*mcpsdk.CallToolResult, ConverseResult, error) {
	text := strings.TrimSpace(args.Text)
	if text == "" {
		return nil, ConverseResult{}, errors.New("text is required")
	}

	var conv *dialogue.Conversation
	if id := strings.TrimSpace(args.ConversationID); id != "" {
		var ok bool
		if conv, ok = s.app.Conversations().GetFrom(id, Origin); !ok {
			s.forget(id)
			return nil, ConverseResult{}, fmt.Errorf("%w %q", ErrUnknownConversation, id)
		}
	} else {
		conv = s.app.Conversations().Open(Origin)
	}
	if !s.limiter(conv.ID()).Allow() {
		return nil, ConverseResult{}, ErrTooManyTurns
	}

	reply, err := conv.Turn(ctx, text)
	if err != nil {
		return nil, ConverseResult{}, fmt.Errorf("turn failed: %w", err)
	}

	out := &collector{}
	if err := s.app.Performer(out, out).Perform(ctx, reply.Effect); err != nil {
		return nil, ConverseResult{}, fmt.Errorf("performing reply: %w", err)
	}

	return nil, ConverseResult{
		ConversationID: conv.ID(),
		Status:         reply.Status.String(),
		Spoken:         out.spoken,
		Displayed:      out.displayed,
		Calls:          reply.Effect.Calls(),
		Awaiting:       conv.Snapshot().Awaiting(),
	}, nil
}

// CallNumberArgs is the input of "call_number".
type CallNumberArgs struct {
	Number string `json:"number" jsonschema:"Phone number to call"`
}

// CallNumberResult is the output of "call_number".
type CallNumberResult struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

func (s *Server) handleCallNumber(ctx context.Context, _ *mcpsdk.CallToolRequest, args CallNumberArgs) (*mcpsdk.CallToolResult, CallNumberResult, error) {
	number := strings.TrimSpace(args.Number)
	if number == "" {
		return nil, CallNumberResult{}, errors.New("number is required")
	}
	if err := s.app.CallNumber(ctx, nil, number); err != nil {
		return nil, CallNumberResult{}, fmt.Errorf("call failed: %w", err)
	}
	return nil, CallNumberResult{Number: number, Message: s.app.Messages().Calling(number)}, nil
}

// SearchArgs is the input of "search_contacts".
type SearchArgs struct {
	Name string `json:"name" jsonschema:"Name or part of a name"`
}

// Contact is one search result.
type Contact struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Numbers  []string `json:"numbers"`
	Distance int      `json:"distance"`
}

// SearchResult is the output of "search_contacts".
type SearchResult struct {
	Contacts []Contact `json:"contacts"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcpsdk.CallToolRequest, args SearchArgs) (*mcpsdk.CallToolResult, SearchResult, error) {
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return nil, SearchResult{}, errors.New("name is required")
	}

	dir := s.app.Directory()
	entries, err := dir.Lookup(ctx, name)
	if err != nil {
		return nil, SearchResult{}, fmt.Errorf("contacts unavailable: %w", err)
	}

	ranked := s.matcher.Rank(name, entries)
	out := SearchResult{Contacts: []Contact{}}
	for _, r := range ranked {
		if len(out.Contacts) == maxSearchResults {
			break
		}
		numbers, err := dir.NumbersOf(ctx, r.Entry)
		if err != nil {
			return nil, SearchResult{}, fmt.Errorf("contacts unavailable: %w", err)
		}
		if numbers == nil {
			numbers = []string{}
		}
		out.Contacts = append(out.Contacts, Contact{
			ID:       r.Entry.ID,
			Name:     r.Entry.DisplayName,
			Numbers:  numbers,
			Distance: r.Distance,
		})
	}
	return nil, out, nil
}

// EndArgs is the input of "end_conversation".
type EndArgs struct {
	ConversationID string `json:"conversation_id" jsonschema:"Conversation to close"`
}

// EndResult is the output of "end_conversation".
type EndResult struct {
	Closed bool `json:"closed"`
}

func (s *Server) handleEnd(_ context.Context, _ *mcpsdk.CallToolRequest, args EndArgs) (*mcpsdk.CallToolResult, EndResult, error) {
	id := strings.TrimSpace(args.ConversationID)
	s.forget(id)
	if !s.app.Conversations().CloseFrom(id, Origin) {
		return nil, EndResult{}, fmt.Errorf("%w %q", ErrUnknownConversation, id)
	}
	return nil, EndResult{Closed: true}, nil
}

// limiter returns the turn limiter of the MCP conversation id.
func (s *Server) limiter(id string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[id]
	if !ok {
		l = s.app.NewTurnLimiter()
		s.limiters[id] = l
	}
	return l
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limiters, id)
}
