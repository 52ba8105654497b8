package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	aggregatorCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "cycles_total",
			Help:      "Calculation cycles by how they ended",
		},
		[]string{"outcome"}, // completed, superseded, cancelled
	)

	aggregatorProviderResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "provider_results_total",
			Help:      "Provider calculation results",
		},
		[]string{"provider", "result"}, // quote or a failure kind
	)

	aggregatorProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "provider_duration_seconds",
			Help:      "Time taken by a provider to answer a calculation",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 25},
		},
		[]string{"provider"},
	)
)

// AggregatorMetrics records calculation cycles.
type AggregatorMetrics struct{}

func NewAggregatorMetrics() *AggregatorMetrics {
	return &AggregatorMetrics{}
}

// RecordProviderResult records one provider answer. result is "quote" or
// the failure kind.
func (am *AggregatorMetrics) RecordProviderResult(provider, result string, duration time.Duration) {
	aggregatorProviderResultsTotal.WithLabelValues(provider, result).Inc()
	aggregatorProviderDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// Outcomes recorded by RecordCycle.
const (
	CycleCompleted  = "completed"
	CycleSuperseded = "superseded"
	CycleCancelled  = "cancelled"
)

func (am *AggregatorMetrics) RecordCycle(outcome string) {
	aggregatorCyclesTotal.WithLabelValues(outcome).Inc()
}
