// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// Set does nothing: Windows has no POSIX process groups.
func Set(*exec.Cmd) {}

// Kill only honours SIGKILL, which maps to Process.Kill. Terminate
// escalates to SIGKILL after the grace, so SIGTERM being dropped only
// delays teardown.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil || sig != syscall.SIGKILL {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Gone reports whether the process pgid has exited.
func Gone(pgid int) bool {
	p, err := os.FindProcess(pgid)
	if err != nil {
		return true
	}
	_ = p.Release()
	return false
}
