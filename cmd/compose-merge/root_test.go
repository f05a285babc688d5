// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	baseCompose     = "services:\n  web:\n    image: nginx:1.25\n"
	overrideCompose = "services:\n  web:\n    environment:\n      TZ: UTC\n"
)

func newRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write := func(app, name, content string) {
		dir := filepath.Join(root, app)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("nextcloud", "docker-compose.yml", baseCompose)
	write("nextcloud", "docker-compose.override.yml", overrideCompose)
	write("bitcoin", "docker-compose.yml", baseCompose)
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusJSON(t *testing.T) {
	root := newRoot(t)

	out, err := run(t, "status", "--root", root, "--json")
	require.NoError(t, err)

	var got struct {
		Root string `json:"root"`
		Apps []struct {
			Name     string `json:"name"`
			CanApply bool   `json:"can_apply"`
		} `json:"apps"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, root, got.Root)
	require.Len(t, got.Apps, 2)
	ready := map[string]bool{}
	for _, a := range got.Apps {
		ready[a.Name] = a.CanApply
	}
	assert.Equal(t, map[string]bool{"nextcloud": true, "bitcoin": false}, ready)
}

func TestStatusTable(t *testing.T) {
	out, err := run(t, "status", "--root", newRoot(t))
	require.NoError(t, err)
	assert.Contains(t, out, "APP")
	assert.Contains(t, out, "nextcloud")
}

func TestApplyAll(t *testing.T) {
	root := newRoot(t)

	out, err := run(t, "apply", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "backup: docker-compose.yml.backup.")

	merged, err := os.ReadFile(filepath.Join(root, "nextcloud", "docker-compose.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(merged), "TZ: UTC")
	assert.Contains(t, string(merged), "nginx:1.25")
}

func TestApplySingleApp(t *testing.T) {
	root := newRoot(t)

	_, err := run(t, "apply", "--root", root, "--app", "nextcloud")
	require.NoError(t, err)

	_, err = run(t, "apply", "--root", root, "--app", "missing")
	require.Error(t, err)
}

func TestApplyReportsFailures(t *testing.T) {
	root := newRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "nextcloud", "docker-compose.override.yml"), []byte("a: [unclosed"), 0o644))

	out, err := run(t, "apply", "--root", root)
	require.ErrorIs(t, err, errApplyFailed)
	assert.Contains(t, out, "✗")
}

func TestApplyEmptyRoot(t *testing.T) {
	out, err := run(t, "apply", "--root", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No apps")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "status", "--root", newRoot(t), "--log-level", "loud")
	require.Error(t, err)
}

func TestServeRejectsMissingRoot(t *testing.T) {
	_, err := run(t, "serve", "--root", filepath.Join(t.TempDir(), "nope"), "--listen", "127.0.0.1:0")
	require.Error(t, err)
}
