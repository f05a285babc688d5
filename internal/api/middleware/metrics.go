// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpLabels = []string{"method", "path", "status"}

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "dsns_http_request_duration_seconds",
		Help: "HTTP request latencies in seconds, including streamed bodies",
		// Downloads run for minutes; the upper buckets cover them.
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120, 600, 3600},
	}, httpLabels)

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dsns_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dsns_http_response_size_bytes",
		Help:    "HTTP response sizes in bytes",
		Buckets: prometheus.ExponentialBuckets(100, 10, 10),
	}, httpLabels)
)

// Metrics records latency, in-flight count and body size per route. Aborted
// streams are recorded with the status that was sent before the abort.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpRequestsInFlight.Inc()
			sw := newStatusWriter(w)
			defer observeRequest(r, sw, time.Now())
			next.ServeHTTP(sw, r)
		})
	}
}

func observeRequest(r *http.Request, sw *statusWriter, began time.Time) {
	httpRequestsInFlight.Dec()
	labels := prometheus.Labels{"method": r.Method, "path": routePattern(r), "status": strconv.Itoa(sw.status)}
	httpRequestDuration.With(labels).Observe(time.Since(began).Seconds())
	if sw.bytes > 0 {
		httpResponseSize.With(labels).Observe(float64(sw.bytes))
	}
}
