// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/dsns/internal/config"
	"github.com/ManuGH/dsns/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"
)

// stopBudget bounds the whole shutdown sequence started by Start itself.
const stopBudget = 30 * time.Second

// ShutdownHook releases a resource during shutdown. Hooks run after the
// servers have stopped, most recently registered first.
type ShutdownHook func(ctx context.Context) error

// Manager owns the daemon's HTTP listeners and shutdown hooks.
type Manager interface {
	// Start binds every listener, serves, and blocks until ctx ends or a
	// server fails.
	Start(ctx context.Context) error
	// Shutdown stops the servers and runs the hooks. Repeated calls are no-ops.
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
}

type manager struct {
	cfg    config.ServerConfig
	deps   Deps
	logger zerolog.Logger

	mu       sync.Mutex
	started  bool
	stopping bool
	servers  []*boundServer
	hooks    []namedHook
}

type boundServer struct {
	name string
	srv  *http.Server
	ln   net.Listener
}

type namedHook struct {
	name string
	fn   ShutdownHook
}

func NewManager(cfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str(log.FieldComponent, "manager").Logger(),
	}, nil
}

// Start binds synchronously, so a port conflict on any listener is
// returned before a single request is served and every listener already
// bound is released again.
func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("start context is nil")
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str("listen", m.cfg.ListenAddr).
		Dur("write_timeout", m.cfg.WriteTimeout).
		Dur("shutdown_timeout", m.cfg.ShutdownTimeout).
		Int("max_connections", m.cfg.MaxConnections).
		Msg("starting daemon manager")

	if err := m.bindAll(); err != nil {
		for _, bs := range m.servers {
			_ = bs.ln.Close()
		}
		m.servers = nil
		return err
	}

	failed := make(chan error, len(m.servers))
	for _, bs := range m.servers {
		go func() {
			if err := bs.srv.Serve(bs.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.logger.Error().Err(err).Str(log.FieldEvent, bs.name+".server.failed").Msg("server failed")
				failed <- fmt.Errorf("%s server: %w", bs.name, err)
			}
		}()
	}

	var cause error
	select {
	case cause = <-failed:
		m.logger.Error().Err(cause).Msg("server error, initiating shutdown")
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopBudget)
	defer cancel()
	return errors.Join(cause, m.Shutdown(stopCtx))
}

type listenerSpec struct {
	name     string
	addr     string
	srv      *http.Server
	maxConns int
}

func (m *manager) bindAll() error {
	listeners := []listenerSpec{{
		name: "api",
		addr: m.cfg.ListenAddr,
		srv: &http.Server{
			Handler:           m.deps.APIHandler,
			ReadTimeout:       m.cfg.ReadTimeout,
			ReadHeaderTimeout: m.cfg.ReadHeaderTimeout,
			WriteTimeout:      m.cfg.WriteTimeout,
			IdleTimeout:       m.cfg.IdleTimeout,
			MaxHeaderBytes:    m.cfg.MaxHeaderBytes,
		},
		maxConns: m.cfg.MaxConnections,
	}}
	if m.deps.DashboardHandler != nil {
		listeners = append(listeners, listenerSpec{name: "dashboard", addr: m.deps.DashboardAddr, srv: &http.Server{
			Handler:           m.deps.DashboardHandler,
			ReadTimeout:       m.cfg.ReadTimeout,
			ReadHeaderTimeout: m.cfg.ReadHeaderTimeout,
			IdleTimeout:       m.cfg.IdleTimeout,
		}})
	}
	if m.deps.MetricsHandler != nil {
		listeners = append(listeners, listenerSpec{name: "metrics", addr: m.deps.MetricsAddr, srv: &http.Server{
			Handler:           m.deps.MetricsHandler,
			ReadHeaderTimeout: m.cfg.ReadHeaderTimeout,
		}})
	}

	for _, l := range listeners {
		ln, err := net.Listen("tcp", l.addr)
		if err != nil {
			m.logger.Error().Err(err).Str(log.FieldEvent, l.name+".server.failed").Str("addr", l.addr).Msg("listen failed")
			return fmt.Errorf("%w: %s on %s: %w", ErrServerStartFailed, l.name, l.addr, err)
		}
		if l.maxConns > 0 {
			ln = netutil.LimitListener(ln, l.maxConns)
		}
		l.srv.Addr = ln.Addr().String()
		m.servers = append(m.servers, &boundServer{name: l.name, srv: l.srv, ln: ln})
		m.logger.Info().Str("server", l.name).Str("addr", l.srv.Addr).Msg("server listening")
	}
	return nil
}

func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("shutdown context is nil")
	}
	m.mu.Lock()
	switch {
	case m.stopping:
		m.mu.Unlock()
		return nil
	case !m.started:
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	hooks := append([]namedHook(nil), m.hooks...)
	m.mu.Unlock()

	m.logger.Info().Msg("shutting down daemon manager")
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
	defer cancel()

	errs := m.stopServers(ctx)
	errs = append(errs, m.runHooks(ctx, hooks)...)
	if len(errs) > 0 {
		m.logger.Error().Int("error_count", len(errs)).Msg("shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Msg("daemon manager stopped cleanly")
	return nil
}

// stopServers drains each server within ctx. Connections still open at the
// deadline, typically long downloads, are closed forcibly.
func (m *manager) stopServers(ctx context.Context) []error {
	var errs []error
	for _, bs := range m.servers {
		err := bs.srv.Shutdown(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded):
			m.logger.Warn().Str("server", bs.name).Msg("grace period expired, closing active connections")
			_ = bs.srv.Close()
		default:
			errs = append(errs, fmt.Errorf("%s server shutdown: %w", bs.name, err))
		}
	}
	return errs
}

func (m *manager) runHooks(ctx context.Context, hooks []namedHook) []error {
	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		began := time.Now()
		err := h.fn(ctx)
		ev := m.logger.Debug()
		if err != nil {
			ev = m.logger.Error().Err(err)
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
		ev.Str("hook", h.name).Dur("duration", time.Since(began)).Msg("shutdown hook finished")
	}
	return errs
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, fn: hook})
}
