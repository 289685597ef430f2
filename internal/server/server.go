// Package server exposes name lookups over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/FranksOps/trustcheck/internal/metrics"
	"github.com/FranksOps/trustcheck/internal/serp"
)

// Runner performs one lookup. *engine.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, name, language string) (*serp.Response, error)
}

// Config holds the listener settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server serves /search, /metrics and /healthz.
type Server struct {
	logger  *slog.Logger
	runner  Runner
	srv     *http.Server
	timeout time.Duration
	started atomic.Bool
}

// New builds a Server. A nil logger falls back to slog.Default.
func New(runner Runner, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{logger: logger, runner: runner, timeout: cfg.ShutdownTimeout}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := s.runner.Run(r.Context(), q.Get("name"), q.Get("lang"))
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Warn("search failed", "name", q.Get("name"), "status", status, "err", err)
		}
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatusFor maps a lookup error onto an HTTP status code.
func StatusFor(err error) int {
	var (
		netErr   *serp.NetworkError
		provErr  *serp.ProviderError
		parseErr *serp.ParseError
	)
	switch {
	case errors.Is(err, serp.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, serp.ErrNoResults):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &netErr), errors.As(err, &provErr), errors.As(err, &parseErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// Serve accepts connections on l until ctx is cancelled, then shuts down,
// giving in-flight requests the configured timeout to finish.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("server: already started")
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", l.Addr().String())
		errCh <- s.srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown completed with error", "err", err)
		return err
	}
	s.logger.Info("graceful shutdown completed successfully")
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}
