// SPDX-License-Identifier: MIT
package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"https", "https://example.com/watch?v=1", false},
		{"http", "http://example.com", false},
		{"upper scheme", "HTTPS://example.com", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"ftp", "ftp://example.com/file", true},
		{"file", "file:///etc/passwd", true},
		{"no host", "https://", true},
		{"relative", "/watch?v=1", true},
		{"bad escape", "https://example.com/%zz", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("url", tt.value, []string{"http", "https"})
			assert.Equal(t, tt.wantErr, !v.IsValid(), v.Errors())
		})
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{":8080", false},
		{"127.0.0.1:9090", false},
		{"[::1]:80", false},
		{":0", false},
		{"", true},
		{"8080", true},
		{":http", true},
		{":70000", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			v := New()
			v.ListenAddr("listen", tt.addr)
			assert.Equal(t, tt.wantErr, !v.IsValid(), v.Errors())
		})
	}
}

func TestValidator_Ranges(t *testing.T) {
	v := New()
	v.Range("a", 5, 1, 10)
	v.FloatRange("b", 0.5, 0, 1)
	v.Positive("c", 1)
	v.NonNegative("d", 0)
	v.PositiveDuration("e", time.Second)
	v.NonNegativeDuration("f", 0)
	require.True(t, v.IsValid(), v.Errors())

	v.Range("a", 11, 1, 10)
	v.FloatRange("b", 1.5, 0, 1)
	v.Positive("c", 0)
	v.NonNegative("d", -1)
	v.PositiveDuration("e", 0)
	v.NonNegativeDuration("f", -time.Second)
	require.Len(t, v.Errors(), 6)
	fields := make([]string, 0, 6)
	for _, e := range v.Errors() {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, fields)
}

func TestValidator_ExistingDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	missing := filepath.Join(dir, "missing")

	v := New()
	v.ExistingDir("ok", dir)
	require.True(t, v.IsValid())

	v.ExistingDir("file", file)
	v.ExistingDir("missing", missing)
	v.ExistingDir("empty", "")
	require.Len(t, v.Errors(), 3)
	assert.Equal(t, "path is not a directory", v.Errors()[0].Message)
	assert.Equal(t, "directory does not exist", v.Errors()[1].Message)

	_, err := os.Stat(missing)
	assert.True(t, os.IsNotExist(err), "ExistingDir must not create directories")
}

func TestValidator_NotEmptyAndOneOf(t *testing.T) {
	v := New()
	v.NotEmpty("name", "x")
	v.OneOf("exporter", "grpc", []string{"grpc", "http"})
	require.True(t, v.IsValid())

	v.NotEmpty("name", " \t")
	v.OneOf("exporter", "zipkin", []string{"grpc", "http"})
	require.Len(t, v.Errors(), 2)
	assert.Contains(t, v.Errors()[1].Message, `"zipkin"`)
}

func TestValidator_RangeMessages(t *testing.T) {
	v := New()
	v.Range("workers", 0, 1, 8)
	v.FloatRange("sampling", 1.5, 0, 1)
	require.Len(t, v.Errors(), 2)
	assert.Equal(t, "value must be between 1 and 8, got 0", v.Errors()[0].Message)
	assert.Equal(t, "value must be between 0 and 1, got 1.5", v.Errors()[1].Message)
	assert.Equal(t, 1.5, v.Errors()[1].Value)
}

func TestValidator_Err(t *testing.T) {
	v := New()
	require.NoError(t, v.Err())

	v.AddError("a", "first", nil)
	err := v.Err()
	require.Error(t, err)
	assert.Equal(t, "validation failed for a: first", err.Error())

	v.AddError("b", "second", nil)
	err = v.Err()
	assert.Equal(t, "validation failed for a: first; validation failed for b: second", err.Error())

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors(), 2)

	// Err returns a snapshot.
	v.AddError("c", "third", nil)
	assert.Len(t, verr.Errors(), 2)
}

func TestParseLogLevel(t *testing.T) {
	for _, in := range []string{"trace", "debug", "INFO", " warn ", "error"} {
		_, err := ParseLogLevel(in)
		assert.NoError(t, err, in)
	}
	for _, in := range []string{"verbose", "warning", ""} {
		_, err := ParseLogLevel(in)
		assert.Equal(t, ErrInvalidLogLevel, err, in)
	}
	assert.Contains(t, ErrInvalidLogLevel.Error(), "trace, debug, info, warn, error")
}
