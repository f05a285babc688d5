// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/metrics"
	"github.com/ManuGH/dsns/internal/telemetry"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency bounds parallel merges in ApplyAll.
	DefaultConcurrency = 4
	maxBackupAttempts  = 100
)

// Applier merges overrides for the apps under one root.
type Applier struct {
	root        string
	concurrency int
	now         func() time.Time
	logger      zerolog.Logger
}

// Option configures an Applier.
type Option func(*Applier)

// WithConcurrency bounds parallel merges; values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(a *Applier) { a.concurrency = max(n, 1) }
}

// WithClock replaces the clock used for backup names.
func WithClock(now func() time.Time) Option {
	return func(a *Applier) { a.now = now }
}

// NewApplier returns an Applier for root.
func NewApplier(root string, opts ...Option) *Applier {
	a := &Applier{
		root:        root,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		logger:      log.WithComponent("compose"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Root returns the app-data root.
func (a *Applier) Root() string { return a.root }

// Status scans the root and refreshes the app gauges.
func (a *Applier) Status() ([]App, error) {
	apps, err := Scan(a.root)
	if err != nil {
		return nil, err
	}
	applicable := len(Applicable(apps))
	metrics.SetComposeApps(applicable, len(apps)-applicable)
	return apps, nil
}

// ApplyAll merges every applicable app and returns one result per app,
// sorted by name. The error is non-nil only when the root cannot be scanned.
func (a *Applier) ApplyAll(ctx context.Context) ([]Result, error) {
	runID := uuid.NewString()
	ctx, span := telemetry.Start(ctx, "compose.apply_all", attribute.String("compose.run_id", runID))
	defer span.End()

	apps, err := a.Status()
	if err != nil {
		telemetry.RecordError(span, err, "scan")
		return nil, err
	}
	targets := Applicable(apps)
	logger := a.logger.With().Str(log.FieldRunID, runID).Logger()
	logger.Info().Str(log.FieldEvent, "compose.apply_all").Int("apps", len(targets)).Msg("applying overrides")

	results := make([]Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, app := range targets {
		g.Go(func() error {
			results[i] = a.Apply(gctx, app)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].App < results[j].App })
	return results, nil
}

// ApplyApp merges the app called name.
func (a *Applier) ApplyApp(ctx context.Context, name string) (Result, error) {
	app, err := Lookup(a.root, name)
	if err != nil {
		return Result{}, err
	}
	return a.Apply(ctx, app), nil
}

// Apply merges the override of app into its base. The base is backed up
// first and replaced atomically; a merge that changes nothing writes nothing.
func (a *Applier) Apply(ctx context.Context, app App) Result {
	logger := a.logger.With().Str(log.FieldApp, app.Name).Logger()

	res := a.apply(ctx, app)
	metrics.IncComposeApply(string(res.Status))

	event := logger.Info()
	if res.Status == StatusError {
		event = logger.Error()
	}
	event.Str(log.FieldEvent, "compose.apply").
		Str("status", string(res.Status)).
		Str("backup", res.Backup).
		Msg(res.Message)
	return res
}

func (a *Applier) apply(ctx context.Context, app App) Result {
	res := Result{App: app.Name}
	fail := func(err error) Result {
		res.Status = StatusError
		res.Message = fmt.Sprintf("Error applying override to %s: %v", app.Name, err)
		return res
	}

	if !app.CanApply {
		res.Status = StatusSkipped
		res.Message = fmt.Sprintf("%s needs both %s and %s", app.Name, BaseFile, OverrideFile)
		return res
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	info, err := os.Stat(app.BasePath)
	if err != nil {
		return fail(err)
	}
	base, err := os.ReadFile(app.BasePath)
	if err != nil {
		return fail(err)
	}
	override, err := os.ReadFile(app.OverridePath)
	if err != nil {
		return fail(err)
	}

	merged, err := MergeBytes(base, override)
	if err != nil {
		return fail(err)
	}
	if bytes.Equal(merged, base) {
		res.Status = StatusSkipped
		res.Message = fmt.Sprintf("%s is already up to date", app.Name)
		return res
	}

	backup, err := a.backup(app.BasePath, info)
	if err != nil {
		return fail(fmt.Errorf("backup: %w", err))
	}
	res.Backup = backup

	if err := renameio.WriteFile(app.BasePath, merged, info.Mode().Perm()); err != nil {
		return fail(fmt.Errorf("write: %w", err))
	}

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("Successfully applied override to %s", app.Name)
	return res
}

// backup copies path to path.backup.<timestamp>, keeping mode and mtime.
// A name already taken gets a numeric suffix.
func (a *Applier) backup(path string, info os.FileInfo) (string, error) {
	stamp := path + ".backup." + a.now().Format(BackupTimeLayout)

	src, err := os.Open(path) // #nosec G304 -- path comes from Scan under the configured root
	if err != nil {
		return "", err
	}
	defer src.Close()

	for i := 0; i < maxBackupAttempts; i++ {
		name := stamp
		if i > 0 {
			name = fmt.Sprintf("%s_%d", stamp, i)
		}
		dst, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm()) // #nosec G304
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(dst, src); err != nil {
			_ = dst.Close()
			_ = os.Remove(name)
			return "", err
		}
		if err := dst.Close(); err != nil {
			_ = os.Remove(name)
			return "", err
		}
		_ = os.Chtimes(name, info.ModTime(), info.ModTime())
		return name, nil
	}
	return "", fmt.Errorf("no free backup name for %s", path)
}
