package ddns

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring the sync loop.
var (
	//resolveFailures prometheus metric.
	resolveFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of failed address lookup attempts",
			Name:      "resolve_failures_total",
			Namespace: "ddns",
		},
		[]string{"family"},
	)
	//upserts prometheus metric.
	upserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of record upserts by record type and outcome",
			Name:      "upserts_total",
			Namespace: "ddns",
		},
		[]string{"type", "outcome"},
	)
	//cycles prometheus metric.
	cycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of completed sync cycles, including the startup sync",
			Name:      "cycles_total",
			Namespace: "ddns",
		},
	)
	//skippedTicks prometheus metric.
	skippedTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of scheduler ticks dropped because a cycle was still running",
			Name:      "skipped_ticks_total",
			Namespace: "ddns",
		},
	)
)

func init() {
	prometheus.MustRegister(
		resolveFailures,
		upserts,
		cycles,
		skippedTicks,
	)
}
