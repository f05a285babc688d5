package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProcessStartTotal counts external tool spawns by tool and result.
	ProcessStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsns_process_start_total",
		Help: "Total number of external tool starts, by tool and result (ok/error).",
	}, []string{"tool", "result"})

	// ProcessExitTotal counts external tool exits by tool and reason.
	ProcessExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsns_process_exit_total",
		Help: "Total number of external tool exits, by tool and reason (clean/error/killed).",
	}, []string{"tool", "reason"})

	// ProcessTerminateTotal counts signals sent to process groups.
	ProcessTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsns_process_terminate_total",
		Help: "Total number of termination signals sent to process groups, by signal and result.",
	}, []string{"signal", "result"})

	// ProcessWaitTotal counts how terminated process groups were reaped.
	ProcessWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsns_process_wait_total",
		Help: "Total number of terminated process groups, by outcome (exited/killed/stuck).",
	}, []string{"outcome"})
)

// IncProcStart records an external tool start attempt.
func IncProcStart(tool, result string) {
	ProcessStartTotal.WithLabelValues(tool, result).Inc()
}

// IncProcExit records an external tool exit.
func IncProcExit(tool, reason string) {
	ProcessExitTotal.WithLabelValues(tool, reason).Inc()
}

// IncProcTerminate records a signal sent to a process group.
func IncProcTerminate(signal, result string) {
	ProcessTerminateTotal.WithLabelValues(signal, result).Inc()
}

// IncProcWait records the outcome of waiting on a terminated process group.
func IncProcWait(outcome string) {
	ProcessWaitTotal.WithLabelValues(outcome).Inc()
}
