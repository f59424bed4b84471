package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"

	"github.com/MrWong99/telephonist/internal/dialogue"
	"github.com/MrWong99/telephonist/internal/effect"
	"github.com/MrWong99/telephonist/internal/observe"
	"github.com/MrWong99/telephonist/internal/sttresult"
)

// Client frame types.
const (
	FrameText  = "text"
	FrameVosk  = "vosk"
	FrameClick = "click"
)

// Server frame types.
const (
	FrameHello   = "hello"
	FrameSpeak   = "speak"
	FrameDisplay = "display"
	FramePartial = "partial"
	FrameState   = "state"
	FrameError   = "error"
)

// ClientFrame is a message from the browser.
//
//	{"type": "text", "text": "call alice"}
//	{"type": "vosk", "result": {"alternatives": [...]}}
//	{"type": "click", "number": "+49301234"}
type ClientFrame struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Number string          `json:"number,omitempty"`
}

// ServerFrame is a message to the browser.
type ServerFrame struct {
	Type string `json:"type"`

	ConversationID string `json:"conversation_id,omitempty"`

	// Message, Detail and Rows mirror [effect.Step] for speak and display
	// frames; Message also carries the text of partial and error frames.
	Message string       `json:"message,omitempty"`
	Detail  string       `json:"detail,omitempty"`
	Rows    []effect.Row `json:"rows,omitempty"`

	Status   string `json:"status,omitempty"`
	Awaiting bool   `json:"awaiting,omitempty"`
}

// wsSink is the speech and display channel of one connection.
type wsSink struct {
	conn *websocket.Conn
}

var (
	_ effect.Speaker = (*wsSink)(nil)
	_ effect.Display = (*wsSink)(nil)
)

func (s *wsSink) send(ctx context.Context, f ServerFrame) error {
	return wsjson.Write(ctx, s.conn, f)
}

func (s *wsSink) Speak(ctx context.Context, message string) error {
	return s.send(ctx, ServerFrame{Type: FrameSpeak, Message: message})
}

func (s *wsSink) Show(ctx context.Context, step effect.Step) error {
	return s.send(ctx, ServerFrame{Type: FrameDisplay, Message: step.Message, Detail: step.Detail, Rows: step.Rows})
}

func (s *wsSink) fail(ctx context.Context, msg string) error {
	return s.send(ctx, ServerFrame{Type: FrameError, Message: msg})
}

// wsSession is one WebSocket connection bound to one conversation.
type wsSession struct {
	srv     *Server
	conv    *dialogue.Conversation
	sink    *wsSink
	perf    *effect.Performer
	limiter *rate.Limiter
}

// handleWS upgrades the request and runs a conversation until the client
// disconnects. The conversation is closed with the connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOrigins,
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("web: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	convs := s.app.Conversations()
	conv := convs.Open("ws")
	defer convs.Close(conv.ID())

	sink := &wsSink{conn: conn}
	sess := &wsSession{
		srv:     s,
		conv:    conv,
		sink:    sink,
		perf:    s.app.Performer(sink, sink),
		limiter: s.app.NewTurnLimiter(),
	}
	log := observe.Logger(ctx).With("conversation", conv.ID())

	if err := sink.send(ctx, ServerFrame{Type: FrameHello, ConversationID: conv.ID()}); err != nil {
		log.Debug("web: hello failed", "err", err)
		return
	}

	for {
		var f ClientFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Debug("web: client disconnected")
			default:
				if ctx.Err() == nil {
					log.Warn("web: read failed", "err", err)
				}
			}
			return
		}
		if err := sess.handle(ctx, f); err != nil {
			if ctx.Err() == nil {
				log.Warn("web: frame failed", "type", f.Type, "err", err)
			}
			return
		}
	}
}

// handle processes one client frame. It returns an error only when the
// connection is no longer usable.
func (ws *wsSession) handle(ctx context.Context, f ClientFrame) error {
	switch f.Type {
	case FrameText:
		text := strings.TrimSpace(f.Text)
		if text == "" {
			return ws.sink.fail(ctx, "empty text")
		}
		return ws.turn(ctx, []string{text})

	case FrameVosk:
		res, err := sttresult.Parse(f.Result)
		if err != nil {
			return ws.sink.fail(ctx, "malformed recogniser result")
		}
		switch res.Kind {
		case sttresult.KindPartial:
			return ws.sink.send(ctx, ServerFrame{Type: FramePartial, Message: res.Partial})
		case sttresult.KindFinal:
			return ws.turn(ctx, res.Alternatives)
		default:
			return nil
		}

	case FrameClick:
		number := strings.TrimSpace(f.Number)
		if number == "" {
			return ws.sink.fail(ctx, "empty number")
		}
		if err := ws.srv.app.CallNumber(ctx, ws.sink, number); err != nil {
			observe.Logger(ctx).Warn("web: call failed", "conversation", ws.conv.ID(), "err", err)
			return ws.sink.fail(ctx, "call failed")
		}
		return nil

	default:
		return ws.sink.fail(ctx, "unknown frame type "+f.Type)
	}
}

// turn runs one dialogue turn, performs its effect and reports the new state.
func (ws *wsSession) turn(ctx context.Context, alternatives []string) error {
	if !ws.limiter.Allow() {
		return ws.sink.fail(ctx, "too many turns, slow down")
	}

	reply, err := ws.conv.TurnAlternatives(ctx, alternatives)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		observe.Logger(ctx).Error("web: turn failed", "conversation", ws.conv.ID(), "err", err)
		return ws.sink.fail(ctx, "turn failed")
	}

	if err := ws.perf.Perform(ctx, reply.Effect); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Sink or dispatcher failures are logged by the performer.
		if len(reply.Effect.Calls()) > 0 {
			if ferr := ws.sink.fail(ctx, "call failed"); ferr != nil {
				return ferr
			}
		}
	}

	return ws.sink.send(ctx, ServerFrame{
		Type:     FrameState,
		Status:   reply.Status.String(),
		Awaiting: ws.conv.Snapshot().Awaiting(),
	})
}
