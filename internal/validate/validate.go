// SPDX-License-Identifier: MIT

// Package validate provides field-level validation helpers used by the
// configuration loader, the download request handler and the CLIs.
//
// A Validator collects every failure instead of stopping at the first, so
// an operator sees all configuration problems in one run.
package validate

import (
	"cmp"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Error is a single failed field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError is returned by Validator.Err and carries every failure.
type ValidationError struct {
	errors []Error
}

func (e ValidationError) Errors() []Error { return e.errors }

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator accumulates field errors. The zero value is ready to use.
type Validator struct {
	errors []Error
}

func New() *Validator { return &Validator{} }

func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) failf(field string, value any, format string, args ...any) {
	v.AddError(field, fmt.Sprintf(format, args...), value)
}

func (v *Validator) IsValid() bool { return len(v.errors) == 0 }

func (v *Validator) Errors() []Error { return v.errors }

// Err returns nil when valid, otherwise a ValidationError holding a copy
// of the failures collected so far.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// URL requires an absolute URL with a host and, when schemes is non-empty,
// one of those schemes (compared case-insensitively).
func (v *Validator) URL(field, value string, schemes []string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	switch {
	case err != nil:
		v.failf(field, value, "invalid URL: %v", err)
	case len(schemes) > 0 && !slices.Contains(schemes, strings.ToLower(u.Scheme)):
		v.failf(field, value, "unsupported URL scheme %q (allowed: %s)", u.Scheme, strings.Join(schemes, ", "))
	case u.Host == "":
		v.AddError(field, "URL must have a host", value)
	}
}

// ListenAddr requires host:port with a numeric port in 0-65535. An empty
// host binds all interfaces.
func (v *Validator) ListenAddr(field, addr string) {
	if strings.TrimSpace(addr) == "" {
		v.AddError(field, "listen address cannot be empty", addr)
		return
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.failf(field, addr, "invalid listen address: %v", err)
		return
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		v.failf(field, addr, "invalid port %q", port)
	}
}

func (v *Validator) Range(field string, value, minVal, maxVal int) {
	inRange(v, field, value, minVal, maxVal, "%d")
}

func (v *Validator) FloatRange(field string, value, minVal, maxVal float64) {
	inRange(v, field, value, minVal, maxVal, "%g")
}

func inRange[T cmp.Ordered](v *Validator, field string, value, minVal, maxVal T, verb string) {
	if value < minVal || value > maxVal {
		v.failf(field, value, "value must be between "+verb+" and "+verb+", got "+verb, minVal, maxVal, value)
	}
}

// ExistingDir requires path to name an existing directory. Nothing is created.
func (v *Validator) ExistingDir(field, path string) {
	if path == "" {
		v.AddError(field, "directory path cannot be empty", path)
		return
	}
	info, err := os.Stat(filepath.Clean(path))
	switch {
	case os.IsNotExist(err):
		v.AddError(field, "directory does not exist", path)
	case err != nil:
		v.failf(field, path, "cannot access directory: %v", err)
	case !info.IsDir():
		v.AddError(field, "path is not a directory", path)
	}
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.failf(field, value, "value must be one of %v, got %q", allowed, value)
	}
}

func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.failf(field, value, "value must be positive, got %d", value)
	}
}

func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.failf(field, value, "value cannot be negative, got %d", value)
	}
}

func (v *Validator) PositiveDuration(field string, d time.Duration) {
	if d <= 0 {
		v.failf(field, d, "duration must be positive, got %s", d)
	}
}

func (v *Validator) NonNegativeDuration(field string, d time.Duration) {
	if d < 0 {
		v.failf(field, d, "duration cannot be negative, got %s", d)
	}
}
