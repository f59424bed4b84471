// Package app wires the telephonist subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the contact directory,
// the dialer and the dialogue engine from the config, Run drives background
// work (contacts reload, idle conversation cleanup), and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithDirectory,
// WithDispatcher, WithMetrics). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/MrWong99/telephonist/internal/config"
	dialers "github.com/MrWong99/telephonist/internal/dialer"
	"github.com/MrWong99/telephonist/internal/dialogue"
	"github.com/MrWong99/telephonist/internal/directory"
	"github.com/MrWong99/telephonist/internal/effect"
	"github.com/MrWong99/telephonist/internal/grammar"
	"github.com/MrWong99/telephonist/internal/health"
	"github.com/MrWong99/telephonist/internal/match"
	"github.com/MrWong99/telephonist/internal/messages"
	"github.com/MrWong99/telephonist/internal/observe"
	"github.com/MrWong99/telephonist/internal/resilience"
	"github.com/MrWong99/telephonist/internal/skill/telephone"
	"github.com/MrWong99/telephonist/pkg/contact"
	"github.com/MrWong99/telephonist/pkg/dialer"
)

// ErrNoStore is returned by [App.ImportContacts] when the directory cannot be
// written to.
var ErrNoStore = errors.New("app: directory is not writable")

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	dir           contact.Directory
	store         directory.Store
	watcher       *directory.FileWatcher
	fallback      *resilience.DirectoryFallback
	dispatcher    dialer.Dispatcher
	msgs          *messages.Printer
	skill         *telephone.Skill
	engine        *dialogue.Engine
	conversations *Conversations
	checkers      []health.Checker

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDirectory injects a contact directory instead of building one from
// config. The directory is read-only from the App's point of view unless it
// also implements [directory.Store].
func WithDirectory(d contact.Directory) Option {
	return func(a *App) { a.dir = d }
}

// WithDispatcher injects a call dispatcher instead of building one from config.
func WithDispatcher(d dialer.Dispatcher) Option {
	return func(a *App) { a.dispatcher = d }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together.
//
// New performs all initialisation synchronously: the contacts file is loaded,
// the database is connected and migrated, and the engine is assembled. On
// error everything already opened is closed again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	msgs, err := messages.New(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.msgs = msgs

	// 1. Contact directory
	if err := a.initDirectory(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init directory: %w", err)
	}

	// 2. Dialer
	a.initDialer()

	// 3. Dialogue engine
	a.initEngine()

	a.conversations = NewConversations(a.engine, a.metrics, cfg.Server.IdleTimeout)

	slog.Info("app initialised",
		"language", msgs.Tag().String(),
		"directory", cfg.Directory.Backend,
		"dialer", cfg.Dialer.Kind,
	)
	return a, nil
}

// initDirectory builds the configured directory unless one was injected.
func (a *App) initDirectory(ctx context.Context) error {
	if a.dir != nil {
		if s, ok := a.dir.(directory.Store); ok {
			a.store = s
		}
		a.checkers = append(a.checkers, health.DirectoryCheck("directory", a.dir))
		return nil
	}

	dc := a.cfg.Directory
	switch dc.Backend {
	case config.BackendPostgres:
		pool, err := directory.OpenPool(ctx, dc.PostgresDSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		pg := directory.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		a.store = pg
		primary := directory.Instrument(pg, "postgres", a.metrics)
		if !dc.Fallback {
			a.dir = primary
			break
		}

		mem, err := a.watchFile(dc)
		if err != nil {
			return fmt.Errorf("fallback contacts: %w", err)
		}
		a.fallback = resilience.NewDirectoryFallback(primary, "postgres", resilience.FallbackConfig{})
		a.fallback.AddFallback("file", directory.Instrument(mem, "file", a.metrics))
		a.dir = a.fallback
		a.checkers = append(a.checkers, health.BackendsCheck("directory_backends", a.fallback.Backends))

	default:
		mem, err := a.watchFile(dc)
		if err != nil {
			return err
		}
		a.store = mem
		a.dir = directory.Instrument(mem, "file", a.metrics)
	}

	a.checkers = append(a.checkers, health.DirectoryCheck("directory", a.dir))
	return nil
}

// watchFile loads the contacts file into a fresh MemStore and keeps it in sync.
func (a *App) watchFile(dc config.DirectoryConfig) (*directory.MemStore, error) {
	mem := &directory.MemStore{}
	w, err := directory.NewFileWatcher(dc.ContactsFile, mem,
		directory.WithInterval(dc.ReloadInterval),
		directory.WithNotify(),
		directory.WithWatcherMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	a.watcher = w
	slog.Info("contacts loaded", "path", dc.ContactsFile, "contacts", mem.Len())
	return mem, nil
}

// initDialer builds the configured dispatcher unless one was injected.
func (a *App) initDialer() {
	if a.dispatcher != nil {
		return
	}
	dc := a.cfg.Dialer
	switch dc.Kind {
	case config.DialerWebhook:
		opts := []dialers.Option{
			dialers.WithTimeout(dc.Timeout),
			dialers.WithMetrics(a.metrics),
		}
		for k, v := range dc.Headers {
			opts = append(opts, dialers.WithHeader(k, v))
		}
		wh := dialers.NewWebhook(dc.WebhookURL, opts...)
		a.dispatcher = wh
		a.checkers = append(a.checkers, health.BackendsCheck("dialer", func() []resilience.BackendStatus {
			return []resilience.BackendStatus{{Name: "webhook", State: wh.BreakerState()}}
		}))
	default:
		a.dispatcher = dialers.NewLog(a.metrics)
	}
}

// initEngine assembles matcher, skill and engine for the configured language.
func (a *App) initEngine() {
	var matchOpts []match.Option
	if a.cfg.Matcher.TokenWindows {
		matchOpts = append(matchOpts, match.WithTokenWindows())
	}
	skillOpts := []telephone.Option{
		telephone.WithMatcher(match.New(matchOpts...)),
		telephone.WithMetrics(a.metrics),
	}
	if a.cfg.Matcher.PhoneticCorrection {
		skillOpts = append(skillOpts, telephone.WithCorrector(match.NewCorrector()))
	}
	a.skill = telephone.New(a.dir, a.msgs, skillOpts...)

	tag := a.msgs.Tag()
	engineOpts := []dialogue.Option{
		dialogue.WithSkill(grammar.IntentCall, a.skill),
		dialogue.WithConfirmation(grammar.YesNo(tag), a.skill),
		dialogue.WithMetrics(a.metrics),
	}
	if a.cfg.Dialogue.RerouteUnmatched {
		engineOpts = append(engineOpts, dialogue.WithRerouteOnReject())
	}
	a.engine = dialogue.New(grammar.Telephone(tag), engineOpts...)
}

// Engine returns the shared dialogue engine.
func (a *App) Engine() *dialogue.Engine { return a.engine }

// Conversations returns the conversation registry.
func (a *App) Conversations() *Conversations { return a.conversations }

// Dispatcher returns the call dispatcher.
func (a *App) Dispatcher() dialer.Dispatcher { return a.dispatcher }

// Directory returns the contact directory used for lookups.
func (a *App) Directory() contact.Directory { return a.dir }

// Messages returns the printer for the configured language.
func (a *App) Messages() *messages.Printer { return a.msgs }

// Metrics returns the metrics sink.
func (a *App) Metrics() *observe.Metrics { return a.metrics }

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// NewTurnLimiter returns a limiter for the turns of one conversation. Each
// frontend conversation owns its own limiter.
func (a *App) NewTurnLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(a.cfg.Dialogue.TurnsPerSecond), a.cfg.Dialogue.TurnBurst)
}

// HealthCheckers returns the readiness checks for the configured backends.
func (a *App) HealthCheckers() []health.Checker { return a.checkers }

// Performer returns a performer that speaks via speaker, shows via display
// and places calls via the App's dispatcher. Either sink may be nil.
func (a *App) Performer(speaker effect.Speaker, display effect.Display) *effect.Performer {
	return &effect.Performer{Speaker: speaker, Display: display, Dispatcher: a.dispatcher}
}

// CallNumber places a call to number directly, bypassing the dialogue. It is
// what clicking a presented row does.
func (a *App) CallNumber(ctx context.Context, display effect.Display, number string) error {
	return a.Performer(nil, display).Perform(ctx, telephone.CallNumber(number))
}

// ImportContacts adds the contacts of a YAML file to the writable directory
// and returns how many were added.
func (a *App) ImportContacts(ctx context.Context, path string) (int, error) {
	if a.store == nil {
		return 0, ErrNoStore
	}
	cf, err := directory.LoadFile(path)
	if err != nil {
		return 0, fmt.Errorf("app: import contacts: %w", err)
	}
	n, err := directory.BulkImport(ctx, a.store, cf.Contacts)
	if err != nil {
		return n, fmt.Errorf("app: import contacts: %w", err)
	}
	slog.Info("contacts imported", "path", path, "count", n)
	return n, nil
}

// Run drives background work and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(ctx) })
	}
	g.Go(func() error { return a.conversations.Run(ctx) })

	slog.Info("app running")
	<-ctx.Done()
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "conversations", a.conversations.Len(), "closers", len(a.closers))
		a.conversations.CloseAll()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs every closer, used when New fails half way.
func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}
