// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package proc

import (
	"bytes"
	"sync"
)

const (
	defaultRingLines = 50
	// maxPartialLine bounds an unterminated line; longer output is kept as
	// a line of its own.
	maxPartialLine = 4096
)

// LineRing is an io.Writer keeping the most recent non-empty lines written
// to it, for quoting a tool's stderr in errors and logs. Trailing CRs are
// dropped. It is safe for concurrent use.
type LineRing struct {
	mu      sync.Mutex
	lines   []string // oldest first, at most capacity entries
	size    int
	partial []byte
	onLine  func(string)
}

func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = defaultRingLines
	}
	return &LineRing{size: capacity, lines: make([]string, 0, capacity)}
}

// OnLine registers fn for every completed line. Call it before the first
// Write; fn runs outside the ring's lock.
func (r *LineRing) OnLine(fn func(string)) { r.onLine = fn }

// Write never fails.
func (r *LineRing) Write(p []byte) (int, error) {
	var done []string
	r.mu.Lock()
	for rest := p; len(rest) > 0; {
		line, tail, found := bytes.Cut(rest, []byte{'\n'})
		r.partial = append(r.partial, line...)
		if found || len(r.partial) > maxPartialLine {
			done = r.push(done)
		}
		rest = tail
	}
	r.mu.Unlock()
	r.emit(done)
	return len(p), nil
}

// Flush completes a trailing unterminated line.
func (r *LineRing) Flush() {
	r.mu.Lock()
	done := r.push(nil)
	r.mu.Unlock()
	r.emit(done)
}

// push moves the partial line into the ring. Callers hold r.mu.
func (r *LineRing) push(done []string) []string {
	line := string(bytes.TrimRight(r.partial, "\r"))
	r.partial = r.partial[:0]
	if line == "" {
		return done
	}
	if len(r.lines) == r.size {
		r.lines = append(r.lines[:0], r.lines[1:]...)
	}
	r.lines = append(r.lines, line)
	return append(done, line)
}

func (r *LineRing) emit(lines []string) {
	if r.onLine == nil {
		return
	}
	for _, l := range lines {
		r.onLine(l)
	}
}

// LastN returns up to n of the most recent lines, oldest first.
func (r *LineRing) LastN(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	n = min(max(n, 0), len(r.lines))
	return append([]string(nil), r.lines[len(r.lines)-n:]...)
}
