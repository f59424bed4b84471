package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/MrWong99/telephonist/internal/config"
)

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║      Telephonist — startup summary    ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "Language", cfg.Language)
	directory := string(cfg.Directory.Backend)
	if cfg.Directory.Backend == config.BackendPostgres && cfg.Directory.Fallback {
		directory += " + yaml"
	}
	printRow(w, "Directory", directory)
	printRow(w, "Dialer", string(cfg.Dialer.Kind))
	printRow(w, "Listen addr", orDisabled(cfg.Server.ListenAddr))
	mcp := ""
	if cfg.MCP.Enabled {
		mcp = cfg.MCP.Path
	}
	printRow(w, "MCP", orDisabled(mcp))
	discord := ""
	if cfg.Discord.Token != "" {
		discord = "enabled"
		if len(cfg.Discord.ChannelIDs) > 0 {
			discord = strings.Join(cfg.Discord.ChannelIDs, ",")
		}
	}
	printRow(w, "Discord", orDisabled(discord))
	console := ""
	if cfg.Console.Enabled {
		console = "enabled"
	}
	printRow(w, "Console", orDisabled(console))
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func orDisabled(v string) string {
	if v == "" {
		return "(disabled)"
	}
	return v
}

func printRow(w io.Writer, label, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", label, value)
}
