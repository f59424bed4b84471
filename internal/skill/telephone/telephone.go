// Package telephone is the "call somebody" skill. It ranks the contact
// directory against the requested name, lets the selector choose between a
// direct call proposal and a short list, and turns the decision into effects.
//
// A direct call is never placed straight away: the skill proposes it and
// installs a confirm_call continuation, whose yes/no answer is handled by
// [Skill.Confirm].
package telephone

import (
	"context"
	"strings"

	"github.com/MrWong99/telephonist/internal/dialogue"
	"github.com/MrWong99/telephonist/internal/effect"
	"github.com/MrWong99/telephonist/internal/grammar"
	"github.com/MrWong99/telephonist/internal/match"
	"github.com/MrWong99/telephonist/internal/messages"
	"github.com/MrWong99/telephonist/internal/observe"
	"github.com/MrWong99/telephonist/internal/selector"
	"github.com/MrWong99/telephonist/pkg/contact"
)

// Option configures a [Skill].
type Option func(*Skill)

// WithMatcher overrides the ranking matcher. Defaults to [match.New] with no
// options.
func WithMatcher(m *match.Matcher) Option {
	return func(s *Skill) { s.matcher = m }
}

// WithCorrector snaps the requested name onto the most similar sounding
// directory name before ranking. Disabled by default.
func WithCorrector(c *match.Corrector) Option {
	return func(s *Skill) { s.corrector = c }
}

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Skill) { s.metrics = m }
}

// Skill handles the call intent and its confirmation. It is safe for
// concurrent use as long as the directory is.
type Skill struct {
	dir       contact.Directory
	msgs      *messages.Printer
	matcher   *match.Matcher
	corrector *match.Corrector
	metrics   *observe.Metrics
}

var (
	_ dialogue.Skill     = (*Skill)(nil)
	_ dialogue.Confirmer = (*Skill)(nil)
)

// New creates the skill on top of dir, speaking through msgs.
func New(dir contact.Directory, msgs *messages.Printer, opts ...Option) *Skill {
	s := &Skill{dir: dir, msgs: msgs}
	for _, o := range opts {
		o(s)
	}
	if s.matcher == nil {
		s.matcher = match.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handle answers a call turn. Directory failures are reported to the user,
// not to the caller; only a done context yields an error.
func (s *Skill) Handle(ctx context.Context, t dialogue.Turn) (dialogue.Reply, error) {
	who := strings.TrimSpace(t.Slot(grammar.SlotWho))
	log := observe.Logger(ctx).With("who", who)

	entries, err := s.dir.Lookup(ctx, who)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dialogue.Reply{}, ctxErr
		}
		log.Warn("telephone: directory lookup failed", "err", err)
		s.metrics.RecordDirectoryError(ctx, "skill", "lookup")
		return dialogue.Reply{Effect: s.unavailable()}, nil
	}

	query := who
	if s.corrector != nil {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.DisplayName
		}
		if corrected, score, ok := s.corrector.Correct(who, names); ok {
			log.Debug("telephone: name corrected", "corrected", corrected, "score", score)
			query = corrected
		}
	}

	ranked := s.matcher.Rank(query, entries)
	out := selector.Select(ranked, func(c match.Candidate) []string {
		numbers, err := s.dir.NumbersOf(ctx, c.Entry)
		if err != nil {
			log.Warn("telephone: numbers lookup failed", "contact", c.Entry.ID, "err", err)
			s.metrics.RecordDirectoryError(ctx, "skill", "numbers")
			return nil
		}
		return numbers
	})
	if err := ctx.Err(); err != nil {
		return dialogue.Reply{}, err
	}

	s.metrics.RecordSelection(ctx, out.Kind.String())
	log.Debug("telephone: selection", "outcome", out.Kind, "candidates", len(ranked), "shown", len(out.Shown))
	return s.present(out), nil
}

// present turns a selector decision into what the user hears and sees.
func (s *Skill) present(out selector.Outcome) dialogue.Reply {
	switch out.Kind {
	case selector.DirectCall:
		msg := s.msgs.ConfirmCall(out.Name)
		return dialogue.Reply{
			Effect: effect.Of(
				effect.Speak(msg),
				effect.ShowMessage(msg, out.Number),
			),
			Next: dialogue.NewConfirmCall(out.Name, out.Number),
		}
	case selector.Presented:
		return dialogue.Reply{
			Effect: effect.Of(
				effect.Speak(s.msgs.FoundContacts(len(out.Shown))),
				effect.ShowRows(Rows(out.Shown)),
			),
		}
	default:
		return dialogue.Reply{Effect: effect.Of(effect.Speak(s.msgs.UnknownContact()))}
	}
}

func (s *Skill) unavailable() effect.Effect {
	msg := s.msgs.ContactsUnavailable()
	return effect.Of(effect.Speak(msg), effect.ShowMessage(msg, ""))
}

// Confirm acts on the answer to a proposed call. "yes" places the call and
// only displays a note, since the call itself is the spoken feedback; any
// other answer cancels.
func (s *Skill) Confirm(ctx context.Context, call dialogue.ConfirmCall, answer dialogue.Turn) (dialogue.Reply, error) {
	if answer.IntentID == grammar.IntentYes {
		observe.Logger(ctx).Info("telephone: call confirmed", "name", call.Name)
		return dialogue.Reply{Effect: CallNumber(call.Number).Then(
			effect.Of(effect.ShowMessage(s.msgs.Calling(call.Number), "")),
		)}, nil
	}
	msg := s.msgs.NotCalling()
	return dialogue.Reply{Effect: effect.Of(effect.Speak(msg), effect.ShowMessage(msg, ""))}, nil
}

// CallNumber is what selecting a displayed number does: the call is placed
// with no further confirmation and the conversation state is untouched.
func CallNumber(number string) effect.Effect {
	return effect.Of(effect.PlaceCall(number))
}

// Rows lays out presented candidates for display. The first number of each
// contact carries its name; further numbers follow as nameless rows. Every
// row can be selected to call its number.
func Rows(shown []selector.Shown) []effect.Row {
	var rows []effect.Row
	for _, sh := range shown {
		for i, n := range sh.Numbers {
			row := effect.Row{Number: n, Clickable: true}
			if i == 0 {
				row.Name = sh.Candidate.DisplayName()
			}
			rows = append(rows, row)
		}
	}
	return rows
}
