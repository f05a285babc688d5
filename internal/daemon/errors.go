// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

// Construction errors.
var (
	ErrMissingLogger     = errors.New("daemon: logger is required")
	ErrMissingAPIHandler = errors.New("daemon: relay API handler is required")
	ErrMissingManager    = errors.New("daemon: app needs a manager")
	// ErrHalfConfigured means an optional listener has a handler without an
	// address or the reverse.
	ErrHalfConfigured = errors.New("daemon: optional listener needs both handler and address")
)

// Lifecycle errors.
var (
	ErrAlreadyStarted    = errors.New("daemon: manager already started")
	ErrManagerNotStarted = errors.New("daemon: manager not started")
	// ErrServerStartFailed wraps a listener that could not be bound; nothing
	// is served when it is returned.
	ErrServerStartFailed = errors.New("daemon: listener bind failed")
)
