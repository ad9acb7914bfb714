package auditlog

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring the audit log.
var (
	//recoveredDocuments prometheus metric.
	recoveredDocuments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of times an unreadable audit log was replaced with an empty document",
			Name:      "recovered_total",
			Subsystem: "audit_log",
			Namespace: "ddns",
		},
	)
	//writeFailures prometheus metric.
	writeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of audit log appends that could not be persisted",
			Name:      "write_failures_total",
			Subsystem: "audit_log",
			Namespace: "ddns",
		},
	)
)

func init() {
	prometheus.MustRegister(
		recoveredDocuments,
		writeFailures,
	)
}
