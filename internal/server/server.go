// Package server exposes the structuring engine over HTTP.
//
// Routes:
//
//	POST /v1/structure                   structure one transcript
//	POST /v1/schema/resolve              resolve raw section definitions
//	GET  /v1/routing-config              effective routing config and its age
//	POST /v1/routing-config/invalidate   force a routing refresh on next use
//	GET  /healthz, /readyz               liveness and readiness
//	GET  /metrics                        Prometheus metrics
//
// Every route is wrapped in [observe.Middleware].
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MrWong99/surveyscribe/internal/config"
	"github.com/MrWong99/surveyscribe/internal/engine"
	"github.com/MrWong99/surveyscribe/internal/health"
	"github.com/MrWong99/surveyscribe/internal/observe"
	"github.com/MrWong99/surveyscribe/internal/routing"
)

const (
	defaultMaxBody    = 1 << 20
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// ErrModeUnavailable is returned when a request asks for a structuring mode
// the service was not configured with.
var ErrModeUnavailable = errors.New("server: structuring mode not configured")

// Backend supplies the structurers the API serves from. Implementations may
// swap them at runtime, so the server asks on every request.
type Backend interface {
	// Rules returns the rule-based engine. Never nil.
	Rules() *engine.Engine

	// LLM returns the LLM structurer, or nil when no provider is configured.
	LLM() engine.Structurer

	// Mode is used when a request does not name one.
	Mode() config.Mode

	// Routing returns the routing cache, or nil when routing comes only from
	// the built-in defaults.
	Routing() *routing.Cache
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the metrics recorded by the HTTP middleware. Default:
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth serves /healthz and /readyz from h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler overrides the /metrics handler. Default:
// [observe.MetricsHandler].
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithMaxBodyBytes caps request bodies. Default: 1 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// Server is the HTTP API.
type Server struct {
	backend        Backend
	metrics        *observe.Metrics
	health         *health.Handler
	metricsHandler http.Handler
	maxBody        int64
	handler        http.Handler
}

// New builds the API over backend.
func New(backend Backend, opts ...Option) *Server {
	s := &Server{backend: backend, maxBody: defaultMaxBody}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.metricsHandler == nil {
		s.metricsHandler = observe.MetricsHandler()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/structure", s.handleStructure)
	mux.HandleFunc("POST /v1/schema/resolve", s.handleSchemaResolve)
	mux.HandleFunc("GET /v1/routing-config", s.handleRoutingConfig)
	mux.HandleFunc("POST /v1/routing-config/invalidate", s.handleRoutingInvalidate)
	s.health.Register(mux)
	mux.Handle("GET /metrics", s.metricsHandler)

	s.handler = observe.Middleware(s.metrics)(mux)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on cfg.ListenAddr until ctx is cancelled and then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %q: %w", cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln, cfg.TLS)
}

// Serve accepts connections on ln until ctx is cancelled. When tls is
// non-nil the listener serves HTTPS.
func (s *Server) Serve(ctx context.Context, ln net.Listener, tls *config.TLSConfig) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server: listening", "addr", ln.Addr().String(), "tls", tls != nil)
		if tls != nil {
			errc <- srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			return
		}
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Select picks the structurer b serves for mode. An empty mode selects the
// backend's default. The resolved mode is returned alongside.
func Select(b Backend, mode config.Mode) (engine.Structurer, config.Mode, error) {
	if mode == "" {
		mode = b.Mode()
	}
	switch mode {
	case config.ModeRules, "":
		return b.Rules(), config.ModeRules, nil
	case config.ModeLLM:
		if st := b.LLM(); st != nil {
			return st, mode, nil
		}
		return nil, mode, ErrModeUnavailable
	default:
		return nil, mode, fmt.Errorf("server: unknown mode %q", mode)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("server: encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
