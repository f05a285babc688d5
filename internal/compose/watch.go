// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/platform/fs"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period after the last override write before
// the app is merged.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-applies an app whenever its override file is written.
// Writes to base files never trigger a merge.
type Watcher struct {
	applier  *Applier
	debounce time.Duration
	logger   zerolog.Logger

	// applied, when set, observes every merge result.
	applied func(Result)
}

// NewWatcher returns a Watcher for the applier's root.
func NewWatcher(applier *Applier, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		applier:  applier,
		debounce: debounce,
		logger:   log.WithComponent("compose-watch"),
	}
}

// Run watches until ctx is done. App directories created after start are
// picked up through the root watch.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	root := w.applier.Root()
	if err := fw.Add(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("scan %s: %w", root, err)
	}
	watched := 0
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			if w.watchDir(fw, e.Name(), filepath.Join(root, e.Name())) {
				watched++
			}
		}
	}
	w.logger.Info().Str(log.FieldEvent, "compose.watch_started").Str(log.FieldPath, root).
		Int("apps", watched).Msg("watching override files")

	timers := make(map[string]*time.Timer)
	fire := make(chan string)
	stop := make(chan struct{})
	defer func() {
		close(stop)
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str(log.FieldEvent, "compose.watch_stopped").Msg("override watcher stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			dir, file := filepath.Split(ev.Name)
			dir = filepath.Clean(dir)

			if dir == filepath.Clean(root) {
				if ev.Has(fsnotify.Create) && !strings.HasPrefix(file, ".") {
					w.watchDir(fw, file, ev.Name)
				}
				continue
			}
			if file != OverrideFile || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}

			name := filepath.Base(dir)
			if t, ok := timers[name]; ok {
				t.Reset(w.debounce)
				continue
			}
			timers[name] = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- name:
				case <-stop:
				}
			})

		case name := <-fire:
			delete(timers, name)
			res, err := w.applier.ApplyApp(ctx, name)
			if err != nil {
				w.logger.Warn().Err(err).Str(log.FieldApp, name).Msg("override changed for unknown app")
				continue
			}
			if w.applied != nil {
				w.applied(res)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Str(log.FieldEvent, "compose.watch_error").Msg("watcher error")
		}
	}
}

func (w *Watcher) watchDir(fw *fsnotify.Watcher, name, dir string) bool {
	if _, err := fs.ConfineRelPath(w.applier.Root(), name); err != nil {
		w.logger.Warn().Err(err).Str(log.FieldApp, name).Msg("not watching entry outside root")
		return false
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return false
	}
	if err := fw.Add(dir); err != nil {
		w.logger.Warn().Err(err).Str(log.FieldApp, name).Msg("cannot watch app directory")
		return false
	}
	return true
}
