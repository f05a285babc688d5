// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"cmp"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const defaultService = "dsns"

// Config describes the process-wide logger. Empty fields fall back to the
// LOG_LEVEL, LOG_SERVICE and VERSION environment variables, then to info,
// "dsns" and an empty version. Output defaults to stdout.
type Config struct {
	Level   string
	Output  io.Writer
	Service string
	Version string
}

var base atomic.Pointer[zerolog.Logger]

// Configure replaces the base logger. Every logger derived afterwards via
// WithComponent carries the new service, version and writer; loggers
// derived earlier keep the old ones.
func Configure(cfg Config) {
	level, err := zerolog.ParseLevel(cmp.Or(cfg.Level, os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if cfg.Output != nil {
		out = cfg.Output
	}
	l := zerolog.New(out).With().
		Timestamp().
		Str("service", cmp.Or(cfg.Service, os.Getenv("LOG_SERVICE"), defaultService)).
		Str("version", cmp.Or(cfg.Version, os.Getenv("VERSION"))).
		Logger()
	base.Store(&l)
}

func Base() zerolog.Logger { return *base.Load() }

// WithComponent returns a child of the base logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}

// SetLevel changes the global level in place; existing loggers observe it.
func SetLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

func init() {
	Configure(Config{})
}
