// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/metrics"
)

// Terminate stops a process group and waits until its leader has been reaped.
// done must be closed by whoever owns cmd.Wait once Wait returns.
//
// With a positive grace, SIGTERM is sent first and SIGKILL follows if the
// leader has not exited in time. A zero grace kills immediately. After the
// leader is gone the group is swept with SIGKILL so no child survives it.
// It is safe to call on nil commands (returns nil).
func Terminate(cmd *exec.Cmd, done <-chan struct{}, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	logger := log.WithComponent("procgroup").With().Int(log.FieldPID, cmd.Process.Pid).Logger()

	if grace > 0 {
		signal(cmd, syscall.SIGTERM)

		select {
		case <-done:
			metrics.IncProcWait("exited")
			signal(cmd, syscall.SIGKILL)
			return nil
		case <-time.After(grace):
			logger.Debug().Dur("grace", grace).Msg("SIGTERM grace period exceeded, sending SIGKILL to process group")
		}
	}

	signal(cmd, syscall.SIGKILL)

	select {
	case <-done:
		metrics.IncProcWait("killed")
		// Sweep children that may have outlived the leader.
		signal(cmd, syscall.SIGKILL)
		return nil
	case <-time.After(killTimeout):
		metrics.IncProcWait("stuck")
		logger.Error().Str(log.FieldEvent, "proc.kill_failed").Msg("process group did not exit after SIGKILL")
		return ErrKillFailed
	}
}

func signal(cmd *exec.Cmd, sig syscall.Signal) {
	name := "SIGTERM"
	if sig == syscall.SIGKILL {
		name = "SIGKILL"
	}
	if err := Kill(cmd, sig); err != nil {
		metrics.IncProcTerminate(name, "error")
		return
	}
	metrics.IncProcTerminate(name, "sent")
}
