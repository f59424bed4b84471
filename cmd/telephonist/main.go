// Command telephonist is the main entry point for the telephonist server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/telephonist/internal/app"
	"github.com/MrWong99/telephonist/internal/config"
	"github.com/MrWong99/telephonist/internal/console"
	"github.com/MrWong99/telephonist/internal/discord"
	"github.com/MrWong99/telephonist/internal/mcpserver"
	"github.com/MrWong99/telephonist/internal/observe"
	"github.com/MrWong99/telephonist/internal/web"
)

var version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "telephonist",
		Short: "Voice and chat assistant that finds contacts and places calls",
		Long: `Telephonist understands requests like "call Alice", looks the name up in a
contact directory, asks for confirmation when the match is clear and lists
the candidates when it is not. It talks over WebSocket, Discord, MCP and a
console, and places calls through a log or webhook dialer.

Without a subcommand, telephonist runs the server.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "telephonist.yaml", "path to the YAML configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server with all configured frontends",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	importCmd := &cobra.Command{
		Use:   "import-contacts <file>",
		Short: "Add the contacts of a YAML file to the postgres directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and print a summary",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "telephonist", version)
		},
	}

	rootCmd.AddCommand(serveCmd, importCmd, checkCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "telephonist: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", configPath)
		}
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	return cfg, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("telephonist starting",
		"version", version,
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfigFrom(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialise application: %w", err)
	}

	printStartupSummary(os.Stderr, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return application.Run(gctx) })

	// ── HTTP: WebSocket, health, metrics, MCP ─────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		opts := []web.Option{web.WithAllowedOrigins(cfg.Server.AllowedOrigins...)}
		if cfg.MCP.Enabled {
			opts = append(opts, web.WithHandler(cfg.MCP.Path, mcpserver.New(application, version).Handler()))
		}
		srv := web.New(application, opts...)
		g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Server.ListenAddr, cfg.Server.TLS) })
	}

	// ── Discord bot (optional) ────────────────────────────────────────────────
	var bot *discord.Bot
	if cfg.Discord.Token != "" {
		bot, err = discord.New(gctx, cfg.Discord, application)
		if err != nil {
			stop()
			_ = g.Wait()
			_ = application.Shutdown(context.Background())
			return fmt.Errorf("create discord bot: %w", err)
		}
		slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)
		g.Go(func() error { return bot.Run(gctx) })
	}

	// ── Console (optional) ────────────────────────────────────────────────────
	if cfg.Console.Enabled {
		onlyFrontend := cfg.Server.ListenAddr == "" && cfg.Discord.Token == ""
		g.Go(func() error {
			err := console.New(application, os.Stdin, os.Stdout).Run(gctx)
			if onlyFrontend {
				stop()
			}
			return err
		})
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if runErr != nil {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")

	if bot != nil {
		if err := bot.Close(); err != nil {
			slog.Warn("discord bot close error", "err", err)
		}
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown: %w", err))
	}
	slog.Info("goodbye")
	return runErr
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Directory.Backend != config.BackendPostgres {
		return fmt.Errorf("import-contacts needs directory.backend %q; the %q backend is edited by changing %s",
			config.BackendPostgres, cfg.Directory.Backend, cfg.Directory.ContactsFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialise application: %w", err)
	}
	defer application.Shutdown(context.Background())

	n, err := application.ImportContacts(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d contacts from %s\n", n, args[0])
	return nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration OK\n", configPath)
	printStartupSummary(cmd.OutOrStdout(), cfg)
	return nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
