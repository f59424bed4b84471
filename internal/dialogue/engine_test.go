package dialogue_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/telephonist/internal/dialogue"
	"github.com/MrWong99/telephonist/internal/effect"
	"github.com/MrWong99/telephonist/internal/observe"
)

var router = dialogue.RecognizerFunc(func(in string) (dialogue.Turn, bool) {
	who, ok := strings.CutPrefix(in, "call ")
	if !ok {
		return dialogue.Turn{}, false
	}
	return dialogue.Turn{IntentID: "call", Slots: map[string]string{"who": who}, Input: in}, true
})

var yesNo = dialogue.RecognizerFunc(func(in string) (dialogue.Turn, bool) {
	switch in {
	case "yes", "no":
		return dialogue.Turn{IntentID: in, Input: in}, true
	}
	return dialogue.Turn{}, false
})

// callSkill proposes calling whoever was named and records its turns.
type callSkill struct {
	mu    sync.Mutex
	turns []dialogue.Turn
	err   error
	next  *dialogue.Continuation
}

func (s *callSkill) Handle(_ context.Context, t dialogue.Turn) (dialogue.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
	if s.err != nil {
		return dialogue.Reply{}, s.err
	}
	next := s.next
	if next == nil {
		next = dialogue.NewConfirmCall(t.Slot("who"), "111")
	}
	return dialogue.Reply{
		Effect: effect.Of(effect.Speak("call " + t.Slot("who") + "?")),
		Next:   next,
	}, nil
}

func (s *callSkill) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// confirmer places the call on yes and records what it was asked.
type confirmer struct {
	calls   []dialogue.ConfirmCall
	answers []string
	next    *dialogue.Continuation
	err     error
}

func (c *confirmer) Confirm(_ context.Context, call dialogue.ConfirmCall, answer dialogue.Turn) (dialogue.Reply, error) {
	c.calls = append(c.calls, call)
	c.answers = append(c.answers, answer.IntentID)
	if c.err != nil {
		return dialogue.Reply{}, c.err
	}
	if answer.IntentID == "yes" {
		return dialogue.Reply{Effect: effect.Of(effect.PlaceCall(call.Number)), Next: c.next}, nil
	}
	return dialogue.Reply{Effect: effect.Of(effect.Speak("not calling")), Next: c.next}, nil
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newEngine(t *testing.T, s *callSkill, c *confirmer, opts ...dialogue.Option) *dialogue.Engine {
	t.Helper()
	opts = append([]dialogue.Option{
		dialogue.WithSkill("call", s),
		dialogue.WithConfirmation(yesNo, c),
		dialogue.WithMetrics(testMetrics(t)),
	}, opts...)
	return dialogue.New(router, opts...)
}

func awaiting(name, number string) dialogue.State {
	return dialogue.State{Pending: dialogue.NewConfirmCall(name, number)}
}

func TestProcess_IdleRoutesAndInstalls(t *testing.T) {
	t.Parallel()

	s, c := &callSkill{}, &confirmer{}
	e := newEngine(t, s, c)

	st, reply, err := e.Process(context.Background(), dialogue.State{}, "call alice")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply.Status != dialogue.StatusRouted {
		t.Errorf("status = %v, want routed", reply.Status)
	}
	if !st.Awaiting() || st.Pending.ConfirmCall.Name != "alice" {
		t.Errorf("state = %+v, want awaiting confirmation for alice", st)
	}
	if s.count() != 1 {
		t.Errorf("skill called %d times, want 1", s.count())
	}
}

func TestProcess_NextTurnConsumesContinuation(t *testing.T) {
	t.Parallel()

	s, c := &callSkill{}, &confirmer{}
	e := newEngine(t, s, c)

	st, reply, err := e.Process(context.Background(), awaiting("Alice Smith", "111"), "yes")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply.Status != dialogue.StatusContinued {
		t.Errorf("status = %v, want continued", reply.Status)
	}
	if st.Awaiting() {
		t.Errorf("state still awaiting after consumption: %+v", st.Pending)
	}
	if got := reply.Effect.Calls(); len(got) != 1 || got[0] != "111" {
		t.Errorf("calls = %v, want [111]", got)
	}
	if len(c.calls) != 1 || c.calls[0] != (dialogue.ConfirmCall{Name: "Alice Smith", Number: "111"}) {
		t.Errorf("confirmer got %+v", c.calls)
	}
	if s.count() != 0 {
		t.Error("router skill invoked for a continued turn")
	}
}

func TestProcess_NoAnswer(t *testing.T) {
	t.Parallel()

	c := &confirmer{}
	e := newEngine(t, &callSkill{}, c)

	st, reply, err := e.Process(context.Background(), awaiting("Al", "1"), "no")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if st.Awaiting() {
		t.Error("state awaiting after no")
	}
	if len(reply.Effect.Calls()) != 0 {
		t.Errorf("no-answer placed calls: %v", reply.Effect.Calls())
	}
	if len(c.answers) != 1 || c.answers[0] != "no" {
		t.Errorf("answers = %v, want [no]", c.answers)
	}
}

func TestProcess_RejectedInputIsDropped(t *testing.T) {
	t.Parallel()

	s, c := &callSkill{}, &confirmer{}
	e := newEngine(t, s, c)

	st, reply, err := e.Process(context.Background(), awaiting("Al", "1"), "call bob")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply.Status != dialogue.StatusDropped {
		t.Errorf("status = %v, want dropped", reply.Status)
	}
	if st.Awaiting() {
		t.Error("rejected continuation was retained")
	}
	if len(c.calls) != 0 {
		t.Error("confirmer invoked for rejected input")
	}
	if s.count() != 0 {
		t.Error("rejected input was routed without rerouting enabled")
	}
	if !reply.Effect.IsZero() {
		t.Errorf("dropped turn produced effect %+v", reply.Effect)
	}

	// The following turn is routed normally.
	st, reply, _ = e.Process(context.Background(), st, "call bob")
	if reply.Status != dialogue.StatusRouted || !st.Awaiting() {
		t.Errorf("turn after drop: status %v awaiting %v", reply.Status, st.Awaiting())
	}
}

func TestProcess_RerouteOnReject(t *testing.T) {
	t.Parallel()

	s, c := &callSkill{}, &confirmer{}
	e := newEngine(t, s, c, dialogue.WithRerouteOnReject())

	st, reply, err := e.Process(context.Background(), awaiting("Al", "1"), "call bob")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply.Status != dialogue.StatusRouted {
		t.Errorf("status = %v, want routed", reply.Status)
	}
	if !st.Awaiting() || st.Pending.ConfirmCall.Name != "bob" {
		t.Errorf("state = %+v, want confirmation for bob", st.Pending)
	}
	if len(c.calls) != 0 {
		t.Error("confirmer invoked for rejected input")
	}
}

func TestProcess_RejectedAndUnroutable(t *testing.T) {
	t.Parallel()

	e := newEngine(t, &callSkill{}, &confirmer{}, dialogue.WithRerouteOnReject())
	st, reply, err := e.Process(context.Background(), awaiting("Al", "1"), "hmm")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply.Status != dialogue.StatusUnrouted || st.Awaiting() {
		t.Errorf("status %v awaiting %v, want unrouted idle", reply.Status, st.Awaiting())
	}
}

func TestProcess_LastWriteWins(t *testing.T) {
	t.Parallel()

	replacement := dialogue.NewConfirmCall("Bob", "222")
	c := &confirmer{next: replacement}
	e := newEngine(t, &callSkill{}, c)

	st, _, err := e.Process(context.Background(), awaiting("Al", "1"), "no")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if st.Pending != replacement {
		t.Errorf("pending = %+v, want the continuation installed by this turn", st.Pending)
	}
}

func TestProcess_IdleUnrecognised(t *testing.T) {
	t.Parallel()

	e := newEngine(t, &callSkill{}, &confirmer{})
	st, reply, err := e.Process(context.Background(), dialogue.State{}, "yes")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply.Status != dialogue.StatusUnrouted || st.Awaiting() {
		t.Errorf("status %v awaiting %v, want unrouted idle", reply.Status, st.Awaiting())
	}
}

func TestProcess_RecognisedIntentWithoutSkill(t *testing.T) {
	t.Parallel()

	e := dialogue.New(router, dialogue.WithMetrics(testMetrics(t)))
	_, reply, err := e.Process(context.Background(), dialogue.State{}, "call alice")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply.Status != dialogue.StatusUnrouted {
		t.Errorf("status = %v, want unrouted", reply.Status)
	}
}

func TestProcess_Alternatives(t *testing.T) {
	t.Parallel()

	t.Run("idle picks first routable", func(t *testing.T) {
		t.Parallel()
		s := &callSkill{}
		e := newEngine(t, s, &confirmer{})
		st, reply, err := e.ProcessAlternatives(context.Background(), dialogue.State{},
			[]string{"cool bob", "call bob", "call rob"})
		if err != nil {
			t.Fatalf("ProcessAlternatives: %v", err)
		}
		if reply.Status != dialogue.StatusRouted || st.Pending.ConfirmCall.Name != "bob" {
			t.Errorf("status %v pending %+v, want routed for bob", reply.Status, st.Pending)
		}
		if s.count() != 1 {
			t.Errorf("skill called %d times, want 1", s.count())
		}
	})

	t.Run("awaiting tries every alternative", func(t *testing.T) {
		t.Parallel()
		c := &confirmer{}
		e := newEngine(t, &callSkill{}, c)
		_, reply, err := e.ProcessAlternatives(context.Background(), awaiting("Al", "1"),
			[]string{"yet", "yes", "no"})
		if err != nil {
			t.Fatalf("ProcessAlternatives: %v", err)
		}
		if reply.Status != dialogue.StatusContinued {
			t.Errorf("status = %v, want continued", reply.Status)
		}
		if len(c.answers) != 1 || c.answers[0] != "yes" {
			t.Errorf("answers = %v, want [yes]", c.answers)
		}
	})
}

func TestProcess_CancelledContextKeepsState(t *testing.T) {
	t.Parallel()

	e := newEngine(t, &callSkill{}, &confirmer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := awaiting("Al", "1")
	st, _, err := e.Process(ctx, in, "yes")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if st.Pending != in.Pending {
		t.Error("cancelled turn consumed the continuation")
	}
}

func TestProcess_HandlerErrorStillClears(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	e := newEngine(t, &callSkill{}, &confirmer{err: boom})

	st, _, err := e.Process(context.Background(), awaiting("Al", "1"), "yes")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if st.Awaiting() {
		t.Error("continuation survived a failing handler")
	}
}

func TestProcess_InvalidContinuations(t *testing.T) {
	t.Parallel()

	t.Run("installed without number is discarded", func(t *testing.T) {
		t.Parallel()
		s := &callSkill{next: &dialogue.Continuation{Kind: dialogue.KindConfirmCall, ConfirmCall: &dialogue.ConfirmCall{Name: "x"}}}
		e := newEngine(t, s, &confirmer{})
		st, reply, err := e.Process(context.Background(), dialogue.State{}, "call x")
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if st.Awaiting() || reply.Next != nil {
			t.Errorf("invalid continuation installed: %+v", st.Pending)
		}
	})

	t.Run("unknown pending kind is dropped", func(t *testing.T) {
		t.Parallel()
		c := &confirmer{}
		e := newEngine(t, &callSkill{}, c)
		st, reply, err := e.Process(context.Background(),
			dialogue.State{Pending: &dialogue.Continuation{Kind: "pick_number"}}, "yes")
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if reply.Status != dialogue.StatusDropped || st.Awaiting() || len(c.calls) != 0 {
			t.Errorf("status %v awaiting %v calls %d", reply.Status, st.Awaiting(), len(c.calls))
		}
	})

	t.Run("no confirmer configured", func(t *testing.T) {
		t.Parallel()
		e := dialogue.New(router, dialogue.WithMetrics(testMetrics(t)))
		st, reply, err := e.Process(context.Background(), awaiting("Al", "1"), "yes")
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if reply.Status != dialogue.StatusDropped || st.Awaiting() {
			t.Errorf("status %v awaiting %v, want dropped idle", reply.Status, st.Awaiting())
		}
	})
}

func TestRoute_NoSkill(t *testing.T) {
	t.Parallel()

	e := dialogue.New(router, dialogue.WithMetrics(testMetrics(t)))
	_, err := e.Route(context.Background(), dialogue.Turn{IntentID: "weather"})
	if !errors.Is(err, dialogue.ErrNoRoute) {
		t.Errorf("err = %v, want ErrNoRoute", err)
	}
}

func TestContinuation_JSONShape(t *testing.T) {
	t.Parallel()

	st := awaiting("Alice Smith", "111")
	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"pending":{"kind":"confirm_call","confirm_call":{"name":"Alice Smith","number":"111"}}}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	idle, _ := json.Marshal(dialogue.State{})
	if string(idle) != `{}` {
		t.Errorf("idle json = %s, want {}", idle)
	}
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	for s, want := range map[dialogue.Status]string{
		dialogue.StatusUnrouted:  "unrouted",
		dialogue.StatusRouted:    "routed",
		dialogue.StatusContinued: "continued",
		dialogue.StatusDropped:   "dropped",
		dialogue.Status(9):       "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("Status(%d) = %q, want %q", int(s), got, want)
		}
	}
}
