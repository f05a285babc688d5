// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/ManuGH/dsns/internal/api/problem"
	"github.com/ManuGH/dsns/internal/log"
)

// Recoverer turns a handler panic into a logged 500 problem. The
// http.ErrAbortHandler sentinel is re-panicked: net/http then drops the
// connection and the client observes a truncated download.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			switch rec := recover(); rec {
			case nil:
			case http.ErrAbortHandler:
				panic(rec)
			default:
				logPanic(r, rec)
				problem.Write(w, r, http.StatusInternalServerError, "system/internal", "Internal Server Error", "INTERNAL_ERROR",
					"An unexpected error occurred. Please try again later.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func logPanic(r *http.Request, rec any) {
	logger := log.WithComponentFromContext(r.Context(), "panic-recovery")
	logger.Error().
		Str(log.FieldEvent, "panic.recovered").
		Str("method", r.Method).
		Str("path", strings.ToValidUTF8(r.URL.Path, "")).
		Str("remote_addr", r.RemoteAddr).
		Interface("panic_value", rec).
		Bytes("stack_trace", debug.Stack()).
		Msg("panic recovered in HTTP handler")
}
