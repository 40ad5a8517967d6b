package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/spounge-ai/blitzfind/internal/infra/config"
	"github.com/spounge-ai/blitzfind/pkg/patterns/lifecycle"
)

// Server serves the record API over HTTP/JSON.
type Server struct {
	httpServer *http.Server
	cfg        config.ServerConfig
	tlsConfig  *tls.Config
	logger     *slog.Logger

	mu      sync.Mutex
	lis     net.Listener
	serving chan struct{}
	lastErr error
}

var _ lifecycle.ManagedResource = (*Server)(nil)

// Option customizes a Server.
type Option func(*Server)

// WithTLS terminates TLS on the listener. A nil config leaves it plain.
func WithTLS(tlsConfig *tls.Config) Option {
	return func(s *Server) { s.tlsConfig = tlsConfig }
}

func New(cfg config.ServerConfig, deps Deps, opts ...Option) (*Server, error) {
	api, err := newAPI(deps, cfg.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	handler := chain(api.routes(),
		recoverMiddleware(api.Logger),
		loggingMiddleware(api.Logger),
		requestIDMiddleware(),
	)

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			ErrorLog:     slog.NewLogLogger(api.Logger.Handler(), slog.LevelWarn),
		},
		cfg:    cfg,
		logger: api.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Server) Name() string { return "http_server" }

// Handler exposes the fully wrapped handler, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}

	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	if s.tlsConfig != nil {
		lis = tls.NewListener(lis, s.tlsConfig)
	}
	s.lis = lis
	s.serving = make(chan struct{})

	s.logger.InfoContext(ctx, "HTTP server listening", "address", lis.Addr().String(), "tls", s.tlsConfig != nil)
	go s.serve(lis, s.serving)
	return nil
}

func (s *Server) serve(lis net.Listener, serving chan struct{}) {
	defer close(serving)
	err := s.httpServer.Serve(lis)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server stopped unexpectedly", "error", err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
	}
}

// Stop drains in-flight requests for at most ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	serving := s.serving
	started := s.lis != nil
	s.mu.Unlock()
	if !started {
		return nil
	}

	s.logger.InfoContext(ctx, "Stopping HTTP server...")
	shutdownCtx := ctx
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		_ = s.httpServer.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	<-serving
	s.logger.InfoContext(ctx, "HTTP server stopped.")
	return nil
}

func (s *Server) Health(context.Context) lifecycle.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.lastErr != nil:
		return lifecycle.HealthStatus{Ready: false, Message: s.lastErr.Error()}
	case s.lis == nil:
		return lifecycle.HealthStatus{Ready: false, Message: "not started"}
	default:
		return lifecycle.HealthStatus{Ready: true}
	}
}
