// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compose

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWatcher(t *testing.T, root string) (<-chan Result, func()) {
	t.Helper()
	results := make(chan Result, 8)
	w := NewWatcher(NewApplier(root), 50*time.Millisecond)
	w.applied = func(r Result) { results <- r }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)

	return results, func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func TestWatcher_OverrideWriteTriggersApply(t *testing.T) {
	root := t.TempDir()
	dir := writeApp(t, root, "nextcloud", map[string]string{BaseFile: baseYAML})
	results, stop := startWatcher(t, root)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, OverrideFile), []byte(overrideYAML), 0o640))

	select {
	case res := <-results:
		assert.Equal(t, "nextcloud", res.App)
		assert.Equal(t, StatusSuccess, res.Status, res.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("override write did not trigger a merge")
	}
	assert.Contains(t, readFile(t, filepath.Join(dir, BaseFile)), "redis:7")
}

func TestWatcher_BaseWriteIsIgnored(t *testing.T) {
	root := t.TempDir()
	dir := writeApp(t, root, "nextcloud", map[string]string{BaseFile: baseYAML, OverrideFile: overrideYAML})
	results, stop := startWatcher(t, root)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, BaseFile), []byte(baseYAML+"# touched\n"), 0o640))

	select {
	case res := <-results:
		t.Fatalf("unexpected merge: %+v", res)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcher_NewAppDirectory(t *testing.T) {
	root := t.TempDir()
	results, stop := startWatcher(t, root)
	defer stop()

	dir := writeApp(t, root, "fresh", map[string]string{BaseFile: baseYAML})
	// Let the watcher add the new directory before the override lands.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, OverrideFile), []byte(overrideYAML), 0o640))

	select {
	case res := <-results:
		assert.Equal(t, "fresh", res.App)
		assert.Equal(t, StatusSuccess, res.Status, res.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("override in new app directory did not trigger a merge")
	}
}

func TestWatcher_MissingRoot(t *testing.T) {
	w := NewWatcher(NewApplier(filepath.Join(t.TempDir(), "missing")), 0)
	assert.Equal(t, DefaultDebounce, w.debounce)
	require.Error(t, w.Run(context.Background()))
}
