package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ComposeApplyTotal counts compose merge runs per app by result.
	ComposeApplyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsns_compose_apply_total",
		Help: "Total number of compose override merges, by result (success/error/skipped).",
	}, []string{"result"})

	// ComposeApps tracks the number of discovered app directories.
	ComposeApps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dsns_compose_apps",
		Help: "Number of discovered app directories, by state (applicable/incomplete).",
	}, []string{"state"})
)

// IncComposeApply records the result of merging one app.
func IncComposeApply(result string) {
	ComposeApplyTotal.WithLabelValues(result).Inc()
}

// SetComposeApps records the discovered app counts.
func SetComposeApps(applicable, incomplete int) {
	ComposeApps.WithLabelValues("applicable").Set(float64(applicable))
	ComposeApps.WithLabelValues("incomplete").Set(float64(incomplete))
}
