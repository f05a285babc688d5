// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package compose folds docker-compose.override.yml into docker-compose.yml
// for every application directory under an app-data root.
package compose

import "errors"

const (
	// BaseFile is the compose file that gets rewritten.
	BaseFile = "docker-compose.yml"
	// OverrideFile is merged into BaseFile.
	OverrideFile = "docker-compose.override.yml"
	// BackupTimeLayout formats the suffix of backup files.
	BackupTimeLayout = "20060102_150405"
)

// ErrAppNotFound is returned when a named app has no directory under the root.
var ErrAppNotFound = errors.New("app not found")

// App is one application directory.
type App struct {
	Name         string `json:"name"`
	Dir          string `json:"-"`
	BasePath     string `json:"-"`
	OverridePath string `json:"-"`
	HasBase      bool   `json:"has_base"`
	HasOverride  bool   `json:"has_override"`
	CanApply     bool   `json:"can_apply"`
}

// Status is the outcome of applying one app.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Result reports what Apply did for one app.
type Result struct {
	App     string `json:"app"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Backup  string `json:"backup_file,omitempty"`
}
