// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// StackConfig selects the optional layers of the ingress stack shared by
// the relay API and the compose dashboard.
type StackConfig struct {
	EnableSecurityHeaders bool
	CSP                   string

	EnableMetrics bool
	// TracingService names the otel tracer; empty disables tracing.
	TracingService string
	EnableLogging  bool
}

// NewRouter returns a chi router with the stack from cfg installed.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cfg.middlewares()...)
	return r
}

// middlewares lists the stack outermost first. Recoverer wraps everything
// and the access log sits innermost so it sees the final status and the
// full handler latency.
func (cfg StackConfig) middlewares() []func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{Recoverer, RequestID}
	if cfg.EnableSecurityHeaders {
		mws = append(mws, SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		mws = append(mws, Metrics())
	}
	if cfg.TracingService != "" {
		mws = append(mws, Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		mws = append(mws, AccessLog)
	}
	return mws
}
