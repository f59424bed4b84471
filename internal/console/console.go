// Package console runs a conversation on a terminal or any line-oriented
// stream. Each input line is one turn; lines starting with "{" are decoded as
// Vosk recogniser results. Lines starting with ":" are commands:
//
//	:call <number>   place a call directly
//	:pick <n>        call the n-th number of the last listed result
//	:reset           drop the pending question
//	:quit            leave
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/time/rate"

	"github.com/MrWong99/telephonist/internal/app"
	"github.com/MrWong99/telephonist/internal/dialogue"
	"github.com/MrWong99/telephonist/internal/effect"
	"github.com/MrWong99/telephonist/internal/observe"
	"github.com/MrWong99/telephonist/internal/sttresult"
)

// Origin is the conversation origin recorded for console conversations.
const Origin = "console"

const prompt = "> "

// Console is a line-oriented frontend.
type Console struct {
	app    *app.App
	in     io.Reader
	out    io.Writer
	prompt bool

	conv    *dialogue.Conversation
	limiter *rate.Limiter // survives :reset
	last    []string      // clickable numbers of the last result set
}

// New returns a console reading turns from in and writing replies to out.
// A prompt is printed only when in is a terminal.
func New(a *app.App, in io.Reader, out io.Writer) *Console {
	return &Console{app: a, in: in, out: out, prompt: isTerminal(in)}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Run reads lines until EOF, ":quit" or ctx is done. The conversation is
// closed on return.
func (c *Console) Run(ctx context.Context) error {
	c.conv = c.app.Conversations().Open(Origin)
	c.limiter = c.app.NewTurnLimiter()
	defer func() { c.app.Conversations().Close(c.conv.ID()) }()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		c.printPrompt()
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("console: read: %w", err)
			}
			return nil
		case line := <-lines:
			quit, err := c.handle(ctx, strings.TrimSpace(line))
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

func (c *Console) printPrompt() {
	if c.prompt {
		fmt.Fprint(c.out, prompt)
	}
}

// handle processes one line. It returns an error only when ctx is done
// during a turn.
func (c *Console) handle(ctx context.Context, line string) (quit bool, err error) {
	switch {
	case line == "":
		return false, nil
	case strings.HasPrefix(line, ":"):
		return c.command(ctx, line), nil
	case strings.HasPrefix(line, "{"):
		res, err := sttresult.Parse([]byte(line))
		if err != nil {
			fmt.Fprintln(c.out, "! malformed recogniser result")
			return false, nil
		}
		switch res.Kind {
		case sttresult.KindPartial:
			fmt.Fprintf(c.out, "… %s\n", res.Partial)
			return false, nil
		case sttresult.KindFinal:
			return false, c.turn(ctx, res.Alternatives)
		default:
			return false, nil
		}
	default:
		return false, c.turn(ctx, []string{line})
	}
}

func (c *Console) command(ctx context.Context, line string) (quit bool) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "quit", "q":
		return true
	case "reset":
		c.app.Conversations().Close(c.conv.ID())
		c.conv = c.app.Conversations().Open(Origin)
		c.last = nil
	case "call":
		if arg == "" {
			fmt.Fprintln(c.out, "! usage: :call <number>")
			return false
		}
		c.call(ctx, arg)
	case "pick":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(c.last) {
			fmt.Fprintf(c.out, "! usage: :pick <1-%d>\n", len(c.last))
			return false
		}
		c.call(ctx, c.last[n-1])
	default:
		fmt.Fprintf(c.out, "! unknown command :%s\n", name)
	}
	return false
}

func (c *Console) call(ctx context.Context, number string) {
	if err := c.app.CallNumber(ctx, c, number); err != nil {
		observe.Logger(ctx).Warn("console: call failed", "number", number, "err", err)
		fmt.Fprintf(c.out, "! call to %s failed\n", number)
		return
	}
	fmt.Fprintln(c.out, c.app.Messages().Calling(number))
}

func (c *Console) turn(ctx context.Context, alternatives []string) error {
	if !c.limiter.Allow() {
		fmt.Fprintln(c.out, "! too many turns, slow down")
		return nil
	}
	reply, err := c.conv.TurnAlternatives(ctx, alternatives)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		observe.Logger(ctx).Error("console: turn failed", "err", err)
		fmt.Fprintln(c.out, "! turn failed")
		return nil
	}
	if err := c.app.Performer(c, c).Perform(ctx, reply.Effect); err != nil && len(reply.Effect.Calls()) > 0 {
		fmt.Fprintln(c.out, "! call failed")
	}
	return nil
}

var (
	_ effect.Speaker = (*Console)(nil)
	_ effect.Display = (*Console)(nil)
)

// Speak prints a spoken message.
func (c *Console) Speak(_ context.Context, message string) error {
	_, err := fmt.Fprintf(c.out, "» %s\n", message)
	return err
}

// Show prints a message block or a numbered result set. Clickable rows can
// be called with ":pick".
func (c *Console) Show(_ context.Context, step effect.Step) error {
	if len(step.Rows) == 0 {
		if _, err := fmt.Fprintf(c.out, "  %s\n", step.Message); err != nil {
			return err
		}
		if step.Detail != "" {
			_, err := fmt.Fprintf(c.out, "  %s\n", step.Detail)
			return err
		}
		return nil
	}

	c.last = c.last[:0]
	for _, row := range step.Rows {
		mark := "   "
		if row.Clickable {
			c.last = append(c.last, row.Number)
			mark = fmt.Sprintf("[%d]", len(c.last))
		}
		if _, err := fmt.Fprintf(c.out, "  %s %-24s %s\n", mark, row.Name, row.Number); err != nil {
			return err
		}
	}
	return nil
}
