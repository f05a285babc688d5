// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package proc runs external tools as scoped resources. A Pipeline owns one
// or more chained processes, exposes the last stage's stdout as an
// io.ReadCloser and guarantees on Close that every process group it started
// is gone.
package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/metrics"
	"github.com/ManuGH/dsns/internal/procgroup"
	"github.com/ManuGH/dsns/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const (
	// waitDelay bounds Wait when a killed tool leaves its stderr pipe open
	// through an orphaned grandchild.
	waitDelay = 2 * time.Second
	// exitWait bounds how long Read waits for exit statuses after EOF.
	exitWait = 5 * time.Second
)

// Spec describes one stage of a pipeline.
type Spec struct {
	Tool string // label for logs and metrics, e.g. "yt-dlp"
	Path string
	Args []string
	Env  []string // appended to the daemon's environment
}

// Options tune process supervision.
type Options struct {
	// KillGrace is the SIGTERM grace period on Close. Zero kills immediately.
	KillGrace time.Duration
	// StderrLines is the number of stderr lines kept per stage.
	StderrLines int
}

// ExitError is returned by Read when a stage exited unsuccessfully.
type ExitError struct {
	Tool   string
	Err    error
	Stderr []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Tool, e.Err)
	if n := len(e.Stderr); n > 0 {
		msg += ": " + e.Stderr[n-1]
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

type stage struct {
	spec   Spec
	cmd    *exec.Cmd
	stderr *LineRing
	done   chan struct{}
	err    error
}

func (s *stage) wait(logger zerolog.Logger) {
	err := s.cmd.Wait()
	s.stderr.Flush()
	s.err = err

	reason := "clean"
	switch {
	case err == nil:
	case signaled(err):
		reason = "killed"
	default:
		reason = "error"
	}
	metrics.IncProcExit(s.spec.Tool, reason)
	logger.Debug().
		Str(log.FieldTool, s.spec.Tool).
		Int(log.FieldPID, s.cmd.Process.Pid).
		Str("reason", reason).
		Err(err).
		Msg("process exited")
	close(s.done)
}

func (s *stage) exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Pipeline is a running chain of processes. Read returns the last stage's
// stdout. It is not safe for concurrent reads; Close may be called from any
// goroutine and any number of times.
type Pipeline struct {
	stages []*stage
	out    *os.File
	grace  time.Duration
	logger zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Start launches specs as a pipeline: stdout of each stage feeds stdin of
// the next. Every stage runs in its own process group and is killed when ctx
// is cancelled. The caller must Close the pipeline on every path.
func Start(ctx context.Context, opts Options, specs ...Spec) (*Pipeline, error) {
	if len(specs) == 0 {
		return nil, errors.New("proc: no stages")
	}

	p := &Pipeline{
		grace:  opts.KillGrace,
		logger: log.WithContext(ctx, log.WithComponent("proc")),
	}

	var stdin *os.File
	for _, spec := range specs {
		st, out, err := p.startStage(ctx, spec, stdin, opts.StderrLines)
		if stdin != nil {
			// The child holds its own copy now.
			_ = stdin.Close()
		}
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.stages = append(p.stages, st)
		stdin = out
	}
	p.out = stdin
	return p, nil
}

func (p *Pipeline) startStage(ctx context.Context, spec Spec, stdin *os.File, stderrLines int) (*stage, *os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: create stdout pipe: %w", spec.Tool, err)
	}

	// #nosec G204 -- tool paths come from operator configuration, arguments are built by the relay
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	procgroup.Set(cmd)
	cmd.Cancel = func() error { return procgroup.Kill(cmd, syscall.SIGKILL) }
	cmd.WaitDelay = waitDelay
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if stdin != nil {
		cmd.Stdin = stdin
	}
	cmd.Stdout = w

	ring := NewLineRing(stderrLines)
	stageLogger := p.logger.With().Str(log.FieldTool, spec.Tool).Logger()
	ring.OnLine(func(line string) {
		stageLogger.Debug().Str("stderr", line).Msg("tool output")
	})
	cmd.Stderr = ring

	startErr := cmd.Start()
	_ = w.Close()
	if startErr != nil {
		_ = r.Close()
		metrics.IncProcStart(spec.Tool, "error")
		return nil, nil, fmt.Errorf("start %s: %w", spec.Tool, startErr)
	}
	metrics.IncProcStart(spec.Tool, "ok")
	trace.SpanFromContext(ctx).AddEvent("process.start",
		trace.WithAttributes(telemetry.ProcessAttributes(spec.Tool, cmd.Process.Pid)...))

	p.logger.Debug().
		Str(log.FieldTool, spec.Tool).
		Int(log.FieldPID, cmd.Process.Pid).
		Strs("args", spec.Args).
		Msg("process started")

	st := &stage{spec: spec, cmd: cmd, stderr: ring, done: make(chan struct{})}
	go st.wait(p.logger)
	return st, r, nil
}

// Read reads from the last stage's stdout. At end of output it waits for
// every stage to exit and reports the first unsuccessful one as *ExitError.
func (p *Pipeline) Read(b []byte) (int, error) {
	n, err := p.out.Read(b)
	if errors.Is(err, io.EOF) {
		if exitErr := p.exitStatus(); exitErr != nil {
			return n, exitErr
		}
	}
	return n, err
}

func (p *Pipeline) exitStatus() error {
	timer := time.NewTimer(exitWait)
	defer timer.Stop()

	for _, st := range p.stages {
		select {
		case <-st.done:
		case <-timer.C:
			p.logger.Warn().Str(log.FieldTool, st.spec.Tool).Msg("process still running after end of output")
			return nil
		}
	}

	last := len(p.stages) - 1
	for i, st := range p.stages {
		if st.err == nil {
			continue
		}
		// An upstream stage dying of SIGPIPE only means its consumer finished first.
		if i < last && brokenPipe(st.err) {
			continue
		}
		return &ExitError{Tool: st.spec.Tool, Err: st.err, Stderr: st.stderr.LastN(5)}
	}
	return nil
}

// Close terminates every stage's process group and waits until each has
// been reaped.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		if p.out != nil {
			_ = p.out.Close()
		}

		var errs []error
		for _, st := range p.stages {
			if st.exited() {
				// Sweep children the tool may have left behind.
				_ = procgroup.Kill(st.cmd, syscall.SIGKILL)
				continue
			}
			if err := procgroup.Terminate(st.cmd, st.done, p.grace); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", st.spec.Tool, err))
			}
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

// Pids returns the PIDs (and process group IDs) of all stages.
func (p *Pipeline) Pids() []int {
	pids := make([]int, 0, len(p.stages))
	for _, st := range p.stages {
		pids = append(pids, st.cmd.Process.Pid)
	}
	return pids
}

// StderrTail returns up to n recent stderr lines per stage, prefixed with the tool name.
func (p *Pipeline) StderrTail(n int) []string {
	var out []string
	for _, st := range p.stages {
		for _, line := range st.stderr.LastN(n) {
			out = append(out, st.spec.Tool+": "+line)
		}
	}
	return out
}

func signaled(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	return ok && status.Signaled()
}

func brokenPipe(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return status.Signal() == syscall.SIGPIPE
	}
	// Python tools turn EPIPE into exit status 120 rather than dying of the signal.
	return exitErr.ExitCode() == 120
}
