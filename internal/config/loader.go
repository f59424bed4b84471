package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/telephonist/internal/messages"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.idle_timeout %s must not be negative", cfg.Server.IdleTimeout))
	}

	if _, err := messages.New(cfg.Language); err != nil {
		errs = append(errs, fmt.Errorf("language %q is invalid: %w", cfg.Language, err))
	}

	// Directory
	d := cfg.Directory
	switch {
	case d.Backend != "" && !d.Backend.IsValid():
		errs = append(errs, fmt.Errorf("directory.backend %q is invalid; valid values: yaml, postgres", d.Backend))
	case d.Backend == BackendYAML || d.Backend == "":
		if d.ContactsFile == "" {
			errs = append(errs, errors.New("directory.contacts_file is required for the yaml backend"))
		}
		if d.Fallback {
			slog.Warn("directory.fallback has no effect with the yaml backend")
		}
	case d.Backend == BackendPostgres:
		if d.PostgresDSN == "" {
			errs = append(errs, errors.New("directory.postgres_dsn is required for the postgres backend"))
		}
		if d.Fallback && d.ContactsFile == "" {
			errs = append(errs, errors.New("directory.fallback requires directory.contacts_file"))
		}
	}
	if d.ReloadInterval < 0 {
		errs = append(errs, fmt.Errorf("directory.reload_interval %s must not be negative", d.ReloadInterval))
	}

	// Dialer
	switch {
	case cfg.Dialer.Kind != "" && !cfg.Dialer.Kind.IsValid():
		errs = append(errs, fmt.Errorf("dialer.kind %q is invalid; valid values: log, webhook", cfg.Dialer.Kind))
	case cfg.Dialer.Kind == DialerWebhook:
		if cfg.Dialer.WebhookURL == "" {
			errs = append(errs, errors.New("dialer.webhook_url is required for the webhook dialer"))
		} else if u, err := url.Parse(cfg.Dialer.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("dialer.webhook_url %q must be an absolute http(s) URL", cfg.Dialer.WebhookURL))
		}
	}
	if cfg.Dialogue.TurnsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("dialogue.turns_per_second %g must not be negative", cfg.Dialogue.TurnsPerSecond))
	}
	if cfg.Dialogue.TurnBurst < 0 {
		errs = append(errs, fmt.Errorf("dialogue.turn_burst %d must not be negative", cfg.Dialogue.TurnBurst))
	}
	if cfg.Dialer.Timeout < 0 {
		errs = append(errs, fmt.Errorf("dialer.timeout %s must not be negative", cfg.Dialer.Timeout))
	}

	// Telemetry
	if e := cfg.Telemetry.TraceExporter; e != "" && !e.IsValid() {
		errs = append(errs, fmt.Errorf("telemetry.trace_exporter %q is invalid; valid values: none, stdout", e))
	}
	if r := cfg.Telemetry.TraceSampleRatio; r != nil && (*r < 0 || *r > 1) {
		errs = append(errs, fmt.Errorf("telemetry.trace_sample_ratio %g must be between 0 and 1", *r))
	}

	// Frontends
	if cfg.MCP.Enabled {
		if cfg.Server.ListenAddr == "" {
			errs = append(errs, errors.New("mcp.enabled requires server.listen_addr"))
		}
		if cfg.MCP.Path != "" && !strings.HasPrefix(cfg.MCP.Path, "/") {
			errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
		}
	}
	if cfg.Discord.Token == "" && (cfg.Discord.GuildID != "" || len(cfg.Discord.ChannelIDs) > 0) {
		slog.Warn("discord.guild_id or discord.channel_ids set without discord.token; discord frontend stays disabled")
	}
	if cfg.Server.ListenAddr == "" && cfg.Discord.Token == "" && !cfg.Console.Enabled {
		errs = append(errs, errors.New("no frontend enabled; set server.listen_addr, discord.token or console.enabled"))
	}

	return errors.Join(errs...)
}
