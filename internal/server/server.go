// Package server wires the HTTP API: health probes, version and the browse
// session endpoints under /api/v1.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/bucketnav/internal/errors"
	"github.com/3leaps/bucketnav/internal/server/handlers"
	"github.com/3leaps/bucketnav/internal/server/middleware"
)

// Server is the API server.
type Server struct {
	host     string
	port     int
	router   chi.Router
	logger   *zap.Logger
	sessions *handlers.Sessions

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and lifecycle logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessions mounts the session API at /api/v1/sessions.
func WithSessions(h *handlers.Sessions) Option {
	return func(s *Server) { s.sessions = h }
}

// WithTimeouts sets the http.Server timeouts. Zero keeps the default.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if idle > 0 {
			s.idleTimeout = idle
		}
	}
}

// New builds the router. Nothing listens until Start.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:         host,
		port:         port,
		logger:       zap.NewNop(),
		readTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		idleTimeout:  120 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.ErrorHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.Write(w, http.StatusNotFound, apperrors.HTTPErrorBody{
			Code:      apperrors.CodeNotFound,
			Message:   fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path),
			RequestID: apperrors.RequestIDFrom(r.Context()),
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperrors.Write(w, http.StatusMethodNotAllowed, apperrors.HTTPErrorBody{
			Code:      apperrors.CodeMethodNotAllowed,
			Message:   fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path),
			RequestID: apperrors.RequestIDFrom(r.Context()),
		})
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", handlers.VersionHandler)

	if s.sessions != nil {
		r.Route("/api/v1/sessions", s.sessions.Routes)
	}
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// every open session.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
	}
	if s.sessions != nil {
		if err := s.sessions.CloseAll(); err != nil {
			errs = append(errs, fmt.Errorf("close sessions: %w", err))
		}
	}
	s.logger.Info("server stopped")
	return errors.Join(errs...)
}
