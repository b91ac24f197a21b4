// Package metrics declares the Prometheus collectors exported by the mapper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docmapper"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "odm", Name: "operations_total", Help: "Driver operations issued by the mapper."},
		[]string{"collection", "operation", "outcome"},
	)
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Subsystem: "odm", Name: "operation_duration_seconds", Help: "Latency of driver operations issued by the mapper.", Buckets: prometheus.DefBuckets},
		[]string{"collection", "operation"},
	)
	PopulationLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "odm", Name: "population_lookups_total", Help: "Batched lookups issued while populating references."},
		[]string{"collection"},
	)
)

// RegisterCollectors registers every collector on reg.
func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(Operations)
	reg.MustRegister(OperationDuration)
	reg.MustRegister(PopulationLookups)
}
