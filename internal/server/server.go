// Package server implements the development server: it serves the build
// output, streams reload signals and exposes health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/reload"
)

// Server serves a directory with reload support.
type Server struct {
	addr        string
	root        string
	router      *chi.Mux
	server      *http.Server
	hub         *reload.Hub
	metrics     http.Handler
	metricsPath string
	logger      *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithHub enables /livereload, /livereload.js and script injection.
func WithHub(h *reload.Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithMetrics mounts a metrics handler at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metrics = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a server for root listening on addr.
func New(addr, root string, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		root:   root,
		router: chi.NewRouter(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.metricsPath != "" {
		s.router.Handle(s.metricsPath, s.metrics)
	}

	files := http.FileServer(http.Dir(s.root))
	if s.hub != nil {
		s.router.Get("/livereload", s.hub.ServeHTTP)
		s.router.Get("/livereload.js", handleScript)
		s.router.Handle("/*", injectReloadScript(files))
		return
	}
	s.router.Handle("/*", files)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func handleScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write([]byte(reload.ClientScript)); err != nil {
		slog.Error("failed to write livereload script", "error", err)
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to start dev server").
			WithContext("addr", s.addr).
			Build()
	}
	s.mu.Lock()
	s.listener = ln
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Dev server stopped", "error", err)
		}
	}()
	s.logger.Info("Dev server listening", "url", "http://"+ln.Addr().String(), "root", s.root)
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown closes reload streams and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Shutdown()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "dev server shutdown").Build()
	}
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	return nil
}
