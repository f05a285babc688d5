// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts external tools in their own process group and
// tears the whole group down again, so that helpers spawned by yt-dlp or
// ffmpeg never outlive the request that started them.
package procgroup

import (
	"errors"
	"time"
)

var (
	// ErrKillFailed is returned when a process group survives SIGKILL.
	ErrKillFailed = errors.New("kill operation failed")
)

// killTimeout bounds how long Terminate waits for the reaper after SIGKILL.
const killTimeout = 5 * time.Second
