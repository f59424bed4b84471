// Package discord provides the Discord frontend. It owns the
// discordgo.Session lifecycle, turns channel messages into dialogue turns and
// routes button and slash command interactions to their handlers.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/telephonist/internal/app"
	"github.com/MrWong99/telephonist/internal/config"
)

// Bot owns the Discord gateway connection.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	router    *CommandRouter
	handler   *Handler
	guildID   string
	commands  []*discordgo.ApplicationCommand
	ctx       context.Context
	closeOnce sync.Once
}

// New creates a Bot for a, connects to Discord, and registers the message
// and interaction handlers. Handlers run with ctx as their parent context.
func New(ctx context.Context, cfg config.DiscordConfig, a *app.App) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuilds

	router := NewCommandRouter()
	handler := NewHandler(a, NewPermissionChecker(cfg.CallerRoleID), cfg.GuildID, cfg.ChannelIDs)
	handler.Register(router)

	b := &Bot{
		session: session,
		router:  router,
		handler: handler,
		guildID: cfg.GuildID,
		ctx:     ctx,
	}

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handler.OnMessage(b.ctx, s, m.Message, s.State.User.ID)
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(b.ctx, s, i)
	})

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return b, nil
}

// Handler returns the message handler.
func (b *Bot) Handler() *Handler {
	return b.handler
}

// Run registers slash commands with the Discord API and blocks until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered))
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord bot closed")
	})
	return closeErr
}
