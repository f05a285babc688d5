// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/dsns/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Holder serves the active configuration and swaps it on reload. Which
// fields take effect without a restart is up to the listeners.
type Holder struct {
	current    atomic.Pointer[AppConfig]
	loader     *Loader
	configPath string
	logger     zerolog.Logger

	listenersMu sync.Mutex
	listeners   []chan<- AppConfig
}

func NewHolder(initial AppConfig, loader *Loader, configPath string) *Holder {
	h := &Holder{loader: loader, configPath: configPath, logger: xglog.WithComponent("config")}
	h.current.Store(&initial)
	return h
}

// Get returns a copy of the active configuration.
func (h *Holder) Get() AppConfig { return *h.current.Load() }

// Reload loads and validates the file again. On error the active
// configuration is kept.
func (h *Holder) Reload(_ context.Context) error {
	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("configuration reload rejected")
		return fmt.Errorf("load config: %w", err)
	}
	prev := h.current.Swap(&next)

	for _, c := range changedFields(*prev, next) {
		ev := h.logger.Info()
		msg := "config changed: " + c.field
		if c.restart {
			ev, msg = h.logger.Warn(), msg+" (restart required)"
		}
		ev.Str("old", c.old).Str("new", c.new).Msg(msg)
	}
	h.broadcast(next)
	h.logger.Info().Str(xglog.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

type fieldChange struct {
	field, old, new string
	restart         bool
}

// changedFields lists the operator-visible differences worth logging.
func changedFields(prev, next AppConfig) []fieldChange {
	all := []fieldChange{
		{"log.level", prev.Log.Level, next.Log.Level, false},
		{"relay.rateLimit", fmt.Sprint(prev.Relay.RateLimit), fmt.Sprint(next.Relay.RateLimit), true},
		{"cache.ttl", prev.Cache.TTL.String(), next.Cache.TTL.String(), true},
		{"server.listenAddr", prev.Server.ListenAddr, next.Server.ListenAddr, true},
		{"compose.listenAddr", prev.Compose.ListenAddr, next.Compose.ListenAddr, true},
	}
	var out []fieldChange
	for _, c := range all {
		if c.old != c.new {
			out = append(out, c)
		}
	}
	return out
}

// Watch reloads on changes to the config file until ctx is done. The
// parent directory is watched so editors that replace the file by rename
// are seen. Without a config file Watch returns nil at once.
func (h *Holder) Watch(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().Str(xglog.FieldEvent, "config.watcher_disabled").Msg("no config file, watcher disabled")
		return nil
	}
	target := filepath.Clean(h.configPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().Str(xglog.FieldEvent, "config.watcher_started").Str(xglog.FieldPath, target).Msg("watching config file")

	pending := time.NewTimer(reloadDebounce)
	pending.Stop()
	defer pending.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == target && ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				pending.Reset(reloadDebounce)
			}
		case <-pending.C:
			// Reload logs its own failure; the watcher keeps going.
			_ = h.Reload(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

// RegisterListener subscribes ch to reloaded configurations. Delivery never
// blocks: a full channel misses that update.
func (h *Holder) RegisterListener(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	h.listeners = append(h.listeners, ch)
	h.listenersMu.Unlock()
}

func (h *Holder) broadcast(cfg AppConfig) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str(xglog.FieldEvent, "config.listener_skip").Msg("listener channel full, update dropped")
		}
	}
}
