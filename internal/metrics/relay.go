// Package metrics provides Prometheus metrics for the dsns relay and merger.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Labels stay low-cardinality: no URLs, titles or request IDs.

var (
	// DownloadRequestsTotal counts finished download requests.
	DownloadRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsns_download_requests_total",
		Help: "Total number of download requests, by kind, delivery tier and result.",
	}, []string{"kind", "tier", "result"})

	// RelayBytesTotal counts bytes written to clients.
	RelayBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsns_relay_bytes_total",
		Help: "Total number of media bytes relayed to clients, by delivery tier.",
	}, []string{"tier"})

	// RelayActive tracks in-flight relays.
	RelayActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dsns_relay_active",
		Help: "Current number of active relays, by delivery tier.",
	}, []string{"tier"})

	// RelayFirstByteLatency tracks time from request to the first relayed chunk.
	RelayFirstByteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dsns_relay_first_byte_seconds",
		Help:    "Time from request start to the first relayed chunk, by delivery tier.",
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 30, 60},
	}, []string{"tier"})

	// MetadataProbeTotal counts metadata probes by result.
	MetadataProbeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsns_metadata_probe_total",
		Help: "Total number of yt-dlp metadata probes, by result (ok/error/timeout).",
	}, []string{"result"})

	// MetadataProbeDuration tracks probe latency.
	MetadataProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dsns_metadata_probe_duration_seconds",
		Help:    "Duration of yt-dlp metadata probes.",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30, 45, 60},
	})

	// MetadataCacheTotal counts metadata cache lookups.
	MetadataCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsns_metadata_cache_total",
		Help: "Total number of metadata cache lookups, by result (hit/miss/shared).",
	}, []string{"result"})

	MetadataCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dsns_metadata_cache_entries",
		Help: "Entries currently held by the metadata cache.",
	})
)

// IncDownload records a finished download request.
func IncDownload(kind, tier, result string) {
	DownloadRequestsTotal.WithLabelValues(kind, tier, result).Inc()
}

// AddRelayBytes records bytes written to a client.
func AddRelayBytes(tier string, n int64) {
	if n <= 0 {
		return
	}
	RelayBytesTotal.WithLabelValues(tier).Add(float64(n))
}

// IncRelayActive increments the active relay gauge.
func IncRelayActive(tier string) {
	RelayActive.WithLabelValues(tier).Inc()
}

// DecRelayActive decrements the active relay gauge.
func DecRelayActive(tier string) {
	RelayActive.WithLabelValues(tier).Dec()
}

// GetRelayActive returns the current value of the gauge (for testing).
func GetRelayActive(tier string) float64 {
	var m dto.Metric
	if err := RelayActive.WithLabelValues(tier).Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// ObserveFirstByte records the time until the first chunk was relayed.
func ObserveFirstByte(tier string, d time.Duration) {
	RelayFirstByteLatency.WithLabelValues(tier).Observe(d.Seconds())
}

// ObserveMetadataProbe records a probe outcome and its duration.
func ObserveMetadataProbe(result string, d time.Duration) {
	MetadataProbeTotal.WithLabelValues(result).Inc()
	MetadataProbeDuration.Observe(d.Seconds())
}

// IncMetadataCache records a cache lookup result.
func IncMetadataCache(result string) {
	MetadataCacheTotal.WithLabelValues(result).Inc()
}

func SetMetadataCacheEntries(n int) {
	MetadataCacheEntries.Set(float64(n))
}
