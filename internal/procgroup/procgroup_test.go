// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux

package procgroup

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startGroup(t *testing.T, script string) (*exec.Cmd, chan struct{}) {
	t.Helper()

	cmd := exec.Command("sh", "-c", script)
	Set(cmd)
	require.NoError(t, cmd.Start())

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	require.NoError(t, err)
	require.Equal(t, cmd.Process.Pid, pgid, "PID should be PGID leader")

	// Give the shell a moment to fork its children.
	time.Sleep(100 * time.Millisecond)
	return cmd, done
}

func requireGroupGone(t *testing.T, pgid int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return Gone(pgid)
	}, 2*time.Second, 20*time.Millisecond, "process group %d still exists", pgid)
}

func TestKill_ReachesWholeGroup(t *testing.T) {
	cmd, done := startGroup(t, "sleep 100 & sleep 100")
	pgid := cmd.Process.Pid

	require.NoError(t, Kill(cmd, syscall.SIGKILL))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("leader did not exit after SIGKILL")
	}

	require.NotNil(t, cmd.ProcessState)
	status, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	assert.True(t, status.Signaled(), "process should be signaled")
	assert.Equal(t, syscall.SIGKILL, status.Signal())

	requireGroupGone(t, pgid)
}

func TestKill_NilCommand(t *testing.T) {
	assert.NoError(t, Kill(nil, syscall.SIGKILL))
	assert.NoError(t, Kill(&exec.Cmd{}, syscall.SIGKILL))
}

func TestTerminate_ImmediateKill(t *testing.T) {
	cmd, done := startGroup(t, "trap '' TERM; sleep 100 & sleep 100")
	pgid := cmd.Process.Pid

	start := time.Now()
	require.NoError(t, Terminate(cmd, done, 0))
	assert.Less(t, time.Since(start), 2*time.Second)

	requireGroupGone(t, pgid)
}

func TestTerminate_GracefulExit(t *testing.T) {
	cmd, done := startGroup(t, "sleep 100 & wait")
	pgid := cmd.Process.Pid

	require.NoError(t, Terminate(cmd, done, time.Second))
	requireGroupGone(t, pgid)
}

func TestTerminate_EscalatesAfterGrace(t *testing.T) {
	cmd, done := startGroup(t, "trap '' TERM; while true; do sleep 1; done")
	pgid := cmd.Process.Pid

	start := time.Now()
	require.NoError(t, Terminate(cmd, done, 200*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	requireGroupGone(t, pgid)
}

func TestTerminate_NilCommand(t *testing.T) {
	assert.NoError(t, Terminate(nil, nil, time.Second))
}

func TestGone_IgnoresZombies(t *testing.T) {
	cmd := exec.Command("true")
	Set(cmd)
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	t.Cleanup(func() { _ = cmd.Wait() })

	// Unreaped, the exited child lingers as a zombie that kill(2) still sees.
	require.Eventually(t, func() bool {
		raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
		if err != nil {
			return false
		}
		state, _, ok := parseStat(raw)
		return ok && state == 'Z'
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, syscall.Kill(-pid, syscall.Signal(0)))

	assert.True(t, Gone(pid))
}

func TestGone_LiveGroup(t *testing.T) {
	cmd, done := startGroup(t, "sleep 100")
	assert.False(t, Gone(cmd.Process.Pid))
	require.NoError(t, Terminate(cmd, done, 0))
}

func TestParseStat(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantState byte
		wantPgrp  int
		wantOK    bool
	}{
		{"plain", "4242 (sleep) S 1 4240 4240 0 -1 4194304", 'S', 4240, true},
		{"zombie", "4243 (ffmpeg) Z 4242 4242 4242 0 -1", 'Z', 4242, true},
		{"comm with spaces and parens", "77 (yt (dl) p) R 1 70 70 0", 'R', 70, true},
		{"no comm", "77 R 1 70", 0, 0, false},
		{"truncated", "77 (sh) S 1", 0, 0, false},
		{"bad pgrp", "77 (sh) S 1 x", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, pgrp, ok := parseStat([]byte(tt.line))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantPgrp, pgrp)
		})
	}
}
