// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the relay HTTP surface: the download form, the
// download endpoint and the health probes.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/dsns/internal/api/middleware"
	"github.com/ManuGH/dsns/internal/config"
	"github.com/ManuGH/dsns/internal/health"
	"github.com/ManuGH/dsns/internal/media"
	"github.com/ManuGH/dsns/internal/relay"
)

// MetadataFetcher resolves a source URL into its media item.
type MetadataFetcher interface {
	Fetch(ctx context.Context, sourceURL string) (*media.Item, error)
}

// StreamOpener opens the delivery stream for a plan.
type StreamOpener interface {
	Open(ctx context.Context, sourceURL string, plan media.Plan) (*relay.Stream, error)
}

// Deps are the collaborators of the server.
type Deps struct {
	Metadata MetadataFetcher
	Relay    StreamOpener
	Health   *health.Manager
}

// Server is the relay HTTP API.
type Server struct {
	metadata  MetadataFetcher
	relay     StreamOpener
	health    *health.Manager
	selectOpt media.SelectOptions
	chunkSize int
	rateLimit int
	tracing   bool
	metrics   bool
	version   string

	router http.Handler
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithTracing enables the tracing middleware.
func WithTracing(enabled bool) ServerOption {
	return func(s *Server) { s.tracing = enabled }
}

// New builds the API server from the loaded configuration.
func New(cfg config.AppConfig, deps Deps, opts ...ServerOption) (*Server, error) {
	if deps.Metadata == nil || deps.Relay == nil {
		return nil, errors.New("api: metadata and relay dependencies are required")
	}
	if deps.Health == nil {
		deps.Health = health.NewManager(cfg.Version)
	}

	s := &Server{
		metadata: deps.Metadata,
		relay:    deps.Relay,
		health:   deps.Health,
		selectOpt: media.SelectOptions{
			ProcessFallback: cfg.Relay.ProcessFallback,
			VideoSelector:   cfg.YtDLP.VideoSelector,
			AudioSelector:   cfg.YtDLP.AudioSelector,
			TranscodeAudio:  cfg.FFmpeg.TranscodeAudio,
		},
		chunkSize: cfg.Relay.ChunkSize,
		rateLimit: cfg.Relay.RateLimit,
		metrics:   cfg.Metrics.Enabled,
		tracing:   cfg.Telemetry.Enabled,
		version:   cfg.Version,
	}
	if s.chunkSize <= 0 {
		s.chunkSize = config.Defaults().Relay.ChunkSize
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() http.Handler {
	stack := middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         s.metrics,
		EnableLogging:         true,
	}
	if s.tracing {
		stack.TracingService = "dsns"
	}
	r := middleware.NewRouter(stack)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.With(middleware.RateLimit(middleware.RateLimitConfig{
		RequestLimit: s.rateLimit,
		WindowSize:   time.Minute,
	})).Post("/download", s.handleDownload)

	r.NotFound(writeNotFound)
	r.MethodNotAllowed(writeMethodNotAllowed)
	return r
}
