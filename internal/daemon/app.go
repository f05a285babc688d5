// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the runtime lifecycle of the relay: HTTP servers,
// config reload and background tasks.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/dsns/internal/config"
	"github.com/ManuGH/dsns/internal/log"
	"github.com/rs/zerolog"
)

// Task is a background job that runs until its context is done. A task
// that fails is logged and the daemon keeps serving.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// App runs the Manager next to config reloading and background tasks. Only
// the Manager can end Run with an error.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	tasks        []Task
	reloadSignal os.Signal
}

// NewApp creates an App. cfgHolder may be nil, which disables reloading.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.Holder, tasks ...Task) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		tasks:        tasks,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run blocks until ctx is cancelled or the Manager fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.cfgHolder != nil {
		g.Go(func() error { return a.watchConfigFile(ctx) })
		g.Go(func() error { return a.applyReloads(ctx) })
		if a.reloadSignal != nil {
			g.Go(func() error { return a.reloadOnSignal(ctx) })
		}
	}
	for _, task := range a.tasks {
		g.Go(func() error { return a.runTask(ctx, task) })
	}
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})
	return g.Wait()
}

func (a *App) watchConfigFile(ctx context.Context) error {
	if err := a.cfgHolder.Watch(ctx); err != nil {
		a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("config file watcher unavailable")
	}
	return nil
}

func (a *App) applyReloads(ctx context.Context) error {
	updates := make(chan config.AppConfig, 1)
	a.cfgHolder.RegisterListener(updates)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-updates:
			a.apply(cfg)
		}
	}
}

func (a *App) reloadOnSignal(ctx context.Context) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, a.reloadSignal)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
			a.logger.Info().Str(log.FieldEvent, "config.reload_signal").
				Str("signal", a.reloadSignal.String()).
				Msg("reloading config")
			if err := a.cfgHolder.Reload(ctx); err != nil {
				a.logger.Warn().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("config reload failed")
			}
		}
	}
}

func (a *App) runTask(ctx context.Context, task Task) error {
	a.logger.Debug().Str("task", task.Name).Msg("starting background task")
	if err := task.Run(ctx); err != nil {
		a.logger.Error().Err(err).Str(log.FieldEvent, "task.failed").Str("task", task.Name).Msg("background task failed")
	}
	return nil
}

// apply switches the settings that can change without a restart. Listener,
// binary and cache settings need one.
func (a *App) apply(cfg config.AppConfig) {
	if cfg.Log.Level == "" {
		return
	}
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		a.logger.Warn().Err(err).Str("level", cfg.Log.Level).Msg("ignoring invalid log level")
		return
	}
	a.logger.Info().
		Str(log.FieldEvent, "config.applied").
		Str("log_level", cfg.Log.Level).
		Msg("applied reloaded configuration")
}
