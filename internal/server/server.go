// Package server is the canonical HTTP transport: one POST endpoint
// that hands the raw request body to the pipeline engine and maps its
// response's error codes to an HTTP status, plus liveness/readiness probes
// and an optional WebSocket push endpoint for replay notifications.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/pipeline"
)

// Config carries the HTTP transport's process-wide settings.
type Config struct {
	Addr            string
	MaxRequestBytes int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxRequestBytes <= 0 {
		c.MaxRequestBytes = 1 << 20
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// replayHub is the minimal interface Server needs from replaynotify.Hub.
type replayHub interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// Server hosts the RPC endpoint and the liveness/readiness probes over HTTP.
type Server struct {
	engine *pipeline.Engine
	cfg    Config
	log    *slog.Logger

	httpServer *http.Server
	listener   net.Listener
	replayHub  replayHub
}

// New constructs a Server wrapping engine.
func New(engine *pipeline.Engine, cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: engine, cfg: cfg.withDefaults(), log: log}
}

// WithReplayHub mounts hub's WebSocket endpoint at /replay/ws and returns s.
func (s *Server) WithReplayHub(hub replayHub) *Server {
	s.replayHub = hub
	return s
}

// Handler builds the HTTP mux serving the RPC endpoint, liveness/readiness
// probes, and (if attached) the replay notification WebSocket. Exposed
// separately from Serve so tests can drive it with httptest without binding
// a real listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	if s.replayHub != nil {
		mux.HandleFunc("/replay/ws", s.replayHub.ServeHTTP)
	}
	return mux
}

// Addr returns the server's bound address once Serve has started listening.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve listens on cfg.Addr and blocks until ctx is cancelled or the server
// fails: listen, spawn a shutdown-on-cancel goroutine, then block on Serve.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("server shutdown did not complete cleanly", "error", err)
		}
	}()

	s.log.Info("serving forrst RPC", "addr", listener.Addr().String())
	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxRequestBytes)+1)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	out := s.engine.HandleBytes(r.Context(), raw, s.cfg.MaxRequestBytes)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForResponse(out))
	if _, err := w.Write(out); err != nil {
		s.log.Warn("failed to write RPC response", "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// statusForResponse derives the HTTP status to send from the serialized
// response's error codes without widening pipeline.Engine's HandleBytes
// signature (it returns only the wire bytes).
func statusForResponse(raw []byte) int {
	var wire struct {
		Errors []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil || len(wire.Errors) == 0 {
		return http.StatusOK
	}
	kinds := make([]ferrors.Kind, len(wire.Errors))
	for i, e := range wire.Errors {
		kinds[i] = ferrors.Kind(e.Code)
	}
	return ferrors.HTTPStatusForAll(kinds)
}
