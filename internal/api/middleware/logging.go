// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"time"

	"github.com/ManuGH/dsns/internal/log"
)

// AccessLog logs one line per request after the handler returns, so the
// duration covers the whole streamed response.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newStatusWriter(w)

		defer func() {
			logger := log.WithComponentFromContext(r.Context(), "http")
			event := logger.Info()
			switch {
			case rw.status >= 500:
				event = logger.Error()
			case rw.status >= 400:
				event = logger.Warn()
			case r.URL.Path == "/healthz" || r.URL.Path == "/readyz":
				event = logger.Debug()
			}
			event.
				Str(log.FieldEvent, "http.request").
				Str("method", r.Method).
				Str("path", routePattern(r)).
				Int("status", rw.status).
				Int64("bytes", rw.bytes).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("request completed")
		}()

		next.ServeHTTP(rw, r)
	})
}
