// Package server exposes candidate ranking over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/spigell/candidate-matcher/internal/ai"
	"github.com/spigell/candidate-matcher/internal/ranking"
	"go.uber.org/zap"
)

const requestTimeout = 5 * time.Minute

type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Defaults are applied to requests that leave the corresponding fields out.
type Defaults struct {
	Weights      ranking.WeightConfig
	TopK         int
	MinimumScore float64
	Concurrency  int
}

type Server struct {
	embedder ai.Embedder
	analyzer ai.Analyzer
	defaults Defaults
	config   Config
	logger   *zap.Logger
	validate *validator.Validate
	server   *http.Server
}

// New creates a server. analyzer may be nil, in which case analysis requests are rejected.
func New(embedder ai.Embedder, analyzer ai.Analyzer, defaults Defaults, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		embedder: embedder,
		analyzer: analyzer,
		defaults: defaults,
		config:   cfg,
		logger:   logger,
		validate: validator.New(),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Post("/api/v1/rank", s.handleRank)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
