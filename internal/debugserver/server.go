// Package debugserver exposes a monitor over HTTP for development: settings
// and state reads, the configuration commands, a WebSocket event stream,
// Prometheus metrics and health probes.
package debugserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/audiosession/internal/health"
	"github.com/MrWong99/audiosession/internal/monitor"
	"github.com/MrWong99/audiosession/internal/observe"
	"github.com/MrWong99/audiosession/pkg/session"
)

const (
	commandTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server serves the debug API for one monitor.
type Server struct {
	mon     *monitor.Monitor
	metrics *observe.Metrics
	health  *health.Handler
	handler http.Handler

	events   *broadcaster
	detach   func()
	detachMu sync.Once
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the metrics used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth replaces the default readiness checks.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// New returns a Server for mon. It starts receiving monitor events
// immediately; call [Server.Close] to release them.
func New(mon *monitor.Monitor, opts ...Option) *Server {
	s := &Server{
		mon:     mon,
		metrics: observe.DefaultMetrics(),
		events:  newBroadcaster(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = health.New(health.PlatformCheck(mon))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /settings", s.handleSettings)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /monitoring/start", s.handleStart)
	mux.HandleFunc("POST /monitoring/stop", s.handleStop)
	mux.HandleFunc("POST /recording/prepare", s.handlePrepare)
	mux.HandleFunc("POST /speaker", s.handleSpeaker)
	mux.HandleFunc("POST /mode", s.handleMode)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	s.handler = observe.Middleware(s.metrics)(mux)
	s.detach = mon.OnEvent(s.events.publish)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Close stops forwarding monitor events and disconnects stream clients.
func (s *Server) Close() {
	s.detachMu.Do(func() {
		s.detach()
		s.events.closeAll()
	})
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("debugserver: listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("debugserver: stopped")
	return nil
}

// ── Handlers ────────────────────────────────────────────────────────────────

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	snap := s.mon.Settings(r.Context())
	blob, err := session.Encode(snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(blob)
}

type stateResponse struct {
	Platform      string `json:"platform"`
	State         string `json:"state"`
	Subscriptions int    `json:"subscriptions"`
	PendingEvents int    `json:"pendingEvents"`
	DroppedEvents uint64 `json:"droppedEvents"`
	QueryBreaker  string `json:"queryBreaker"`
	StreamClients int    `json:"streamClients"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		Platform:      s.mon.Platform().Name(),
		State:         s.mon.State().String(),
		Subscriptions: s.mon.Subscriptions(),
		PendingEvents: s.mon.PendingEvents(),
		DroppedEvents: s.mon.DroppedEvents(),
		QueryBreaker:  s.mon.QueryBreakerState().String(),
		StreamClients: s.events.len(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, s.mon.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(context.Context) error { return s.mon.Stop() })
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, s.mon.PrepareForRecording)
}

func (s *Server) handleSpeaker(w http.ResponseWriter, r *http.Request) {
	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("query parameter enabled must be a boolean"))
		return
	}
	s.command(w, r, func(ctx context.Context) error {
		return s.mon.ToggleLargeSpeaker(ctx, enabled)
	})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	mode := session.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		writeError(w, http.StatusBadRequest, errors.New("query parameter mode is required"))
		return
	}
	s.command(w, r, func(ctx context.Context) error {
		return s.mon.SetMode(ctx, mode)
	})
}

type commandResponse struct {
	Status    string            `json:"status"`
	Error     string            `json:"error,omitempty"`
	ErrorKind session.ErrorKind `json:"errorKind,omitempty"`
}

// command runs fn and answers 200 on success. Failures are answered with the
// error kind; the monitor also reports them on the next settings read.
func (s *Server) command(w http.ResponseWriter, r *http.Request, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, session.ErrUnsupported) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, commandResponse{Status: "fail", Error: err.Error(), ErrorKind: session.KindOf(err)})
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Status: "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("debugserver: write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, commandResponse{Status: "fail", Error: err.Error()})
}
