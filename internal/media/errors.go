// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"errors"
	"strings"
)

// Error kinds. Every failure of a download request is classified as exactly
// one of these; the HTTP layer maps them to status codes in a single table.
var (
	// ErrMissingInput is returned when the source URL is absent.
	ErrMissingInput = errors.New("missing input")
	// ErrInvalidInput is returned when the source URL is not an http(s) URL.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMetadataUnavailable covers yt-dlp failures, malformed output and probe timeouts.
	ErrMetadataUnavailable = errors.New("metadata unavailable")
	// ErrNoSuitableFormat is returned when no delivery plan can be built.
	ErrNoSuitableFormat = errors.New("no suitable format")
	// ErrUpstreamFetch is returned when the origin rejects or drops the media fetch.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
)

var kinds = []error{
	ErrMissingInput,
	ErrInvalidInput,
	ErrMetadataUnavailable,
	ErrNoSuitableFormat,
	ErrUpstreamFetch,
}

// Error carries a classified failure. errors.Is matches both the kind and
// the underlying cause.
type Error struct {
	Kind   error
	Op     string
	Detail string
	// Status is the origin HTTP status for direct relay failures, 0 otherwise.
	Status int
	Err    error
}

// NewError builds a classified error.
func NewError(kind error, op, detail string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the taxonomy sentinel err is classified as, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
