// SPDX-License-Identifier: MIT

// Package middleware provides HTTP middleware for the dsns servers.
package middleware

import (
	"net/http"

	"github.com/ManuGH/dsns/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// untraced paths are probes and scrapes.
var untraced = map[string]bool{"/healthz": true, "/readyz": true, "/metrics": true}

// Tracing opens a server span per request, continuing an inbound W3C trace
// context. The span is renamed to the matched route once the handler has
// run, and is ended even when the handler aborts the response.
func Tracing(tracerName string) func(http.Handler) http.Handler {
	tracer := telemetry.Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if untraced[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			parent := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(parent, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			sw := newStatusWriter(w)
			defer endServerSpan(span, r, sw)

			next.ServeHTTP(sw, r.WithContext(ctx))
		})
	}
}

func endServerSpan(span trace.Span, r *http.Request, sw *statusWriter) {
	route := routePattern(r)
	span.SetName(r.Method + " " + route)
	span.SetAttributes(telemetry.HTTPAttributes(r.Method, route, sw.status)...)
	if sw.status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(sw.status))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
