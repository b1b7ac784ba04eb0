package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/promptlab/workbench/internal/config"
	"github.com/promptlab/workbench/internal/http/middleware"
	"github.com/promptlab/workbench/internal/observability"
)

// Server represents the HTTP server.
type Server struct {
	config      config.ServerConfig
	handler     *Handler
	middlewares middleware.Middleware
	srv         *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.ServerConfig,
	handler *Handler,
	middlewares middleware.Middleware,
) *Server {
	return &Server{
		config:      *cfg,
		handler:     handler,
		middlewares: middlewares,
		srv:         nil,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("/v1/templates/inspect", s.handler.HandleInspect)
	mux.HandleFunc("/v1/run", s.handler.HandleRun)
	mux.HandleFunc("/v1/runs", s.handler.HandleMultiRun)
	mux.HandleFunc("/v1/runs/current", s.handler.HandleRunState)
	mux.HandleFunc("/v1/runs/clear", s.handler.HandleRunClear)
	mux.HandleFunc("/v1/runs/load", s.handler.HandleRunLoad)
	mux.HandleFunc("/v1/diff", s.handler.HandleDiff)
	mux.HandleFunc("/v1/history", s.handler.HandleHistory)
	mux.HandleFunc("/health", s.handler.HandleHealth)

	// Apply middleware chain.
	handlerWithMiddleware := s.middlewares(mux)

	// Create server with timeouts. The write timeout must outlast the
	// per-call ceiling so SSE run streams are not cut off mid-run.
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handlerWithMiddleware,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	ctx := context.Background()
	observability.FromContext(ctx).Info("starting HTTP server", observability.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
