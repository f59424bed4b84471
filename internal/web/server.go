// Package web serves the HTTP frontend: health and metrics endpoints, a
// conversation listing, the WebSocket conversation endpoint and, when
// configured, the MCP endpoint.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/telephonist/internal/app"
	"github.com/MrWong99/telephonist/internal/config"
	"github.com/MrWong99/telephonist/internal/health"
	"github.com/MrWong99/telephonist/internal/observe"
)

// Server is the HTTP frontend of an [app.App].
type Server struct {
	app            *app.App
	metrics        *observe.Metrics
	allowedOrigins []string
	extra          map[string]http.Handler
}

// Option configures a [Server].
type Option func(*Server)

// WithAllowedOrigins sets the host patterns accepted for cross-origin
// WebSocket connections.
func WithAllowedOrigins(patterns ...string) Option {
	return func(s *Server) { s.allowedOrigins = patterns }
}

// WithHandler mounts h at pattern, e.g. the MCP endpoint.
func WithHandler(pattern string, h http.Handler) Option {
	return func(s *Server) { s.extra[pattern] = h }
}

// New returns a Server for a.
func New(a *app.App, opts ...Option) *Server {
	s := &Server{
		app:     a,
		metrics: a.Metrics(),
		extra:   make(map[string]http.Handler),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the root handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	health.New(s.app.HealthCheckers()...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /conversations", s.handleConversations)
	mux.HandleFunc("GET /ws", s.handleWS)
	for pattern, h := range s.extra {
		mux.Handle(pattern, h)
	}
	return observe.Middleware(s.metrics)(mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts the server
// down gracefully. With a non-nil tls the server speaks HTTPS.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tls *config.TLSConfig) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr, "tls", tls != nil)
		var err error
		if tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleConversations(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(s.app.Conversations().List()); err != nil {
		slog.Warn("web: encode conversations", "err", err)
	}
}
