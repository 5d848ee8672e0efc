// Package server provides the read-only HTTP API over stored sessions, bills, and embeddings.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/molegis/internal/config"
	"github.com/hyperjump/molegis/internal/search"
	"github.com/hyperjump/molegis/internal/storage"
	"github.com/hyperjump/molegis/pkg/utils"
	"go.uber.org/zap"
)

// Server is the HTTP server for the molegis API.
type Server struct {
	engine  *search.Engine
	storage storage.Storage
	config  *config.Config
	metrics http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. metrics may be nil,
// in which case /metrics is not served.
func NewServer(
	engine *search.Engine,
	storage storage.Storage,
	cfg *config.Config,
	metrics http.Handler,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:  engine,
		storage: storage,
		config:  cfg,
		metrics: metrics,
		logger:  utils.OrNop(logger),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/search", s.handleSearch)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{year}/{code}/bills", s.handleListBills)
		r.Get("/sessions/{year}/{code}/bills/{number}", s.handleGetBill)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
