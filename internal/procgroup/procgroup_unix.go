// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package procgroup

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
)

// Set makes cmd the leader of a new process group. Kill and Terminate only
// reach the tool's children when it was started this way.
func Set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Kill signals the group led by cmd. The leader's pid is the pgid, so the
// signal still reaches children after the leader has been reaped. A group
// that no longer exists is not an error.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

// Gone reports whether no live process is left in group pgid. Zombies
// still answer kill(-pgid, 0); where /proc is readable a group holding only
// zombies counts as gone.
func Gone(pgid int) bool {
	if errors.Is(syscall.Kill(-pgid, syscall.Signal(0)), syscall.ESRCH) {
		return true
	}
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false
	}
	for _, e := range entries {
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join("/proc", e.Name(), "stat"))
		if err != nil {
			continue // exited since ReadDir
		}
		state, pgrp, ok := parseStat(raw)
		if ok && pgrp == pgid && state != 'Z' && state != 'X' {
			return false
		}
	}
	return true
}

// parseStat extracts the state and process group from a /proc/<pid>/stat
// line. The command name may hold spaces and parentheses, so fields are
// counted from the last ')'.
func parseStat(raw []byte) (state byte, pgrp int, ok bool) {
	i := bytes.LastIndexByte(raw, ')')
	if i < 0 {
		return 0, 0, false
	}
	// state ppid pgrp ...
	fields := bytes.Fields(raw[i+1:])
	if len(fields) < 3 || len(fields[0]) != 1 {
		return 0, 0, false
	}
	pgrp, err := strconv.Atoi(string(fields[2]))
	if err != nil {
		return 0, 0, false
	}
	return fields[0][0], pgrp, true
}
