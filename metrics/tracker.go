package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	trackerPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "polls_total",
			Help:      "Status checks issued by the tracker",
		},
		[]string{"provider", "status"}, // success, error
	)

	trackerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "transitions_total",
			Help:      "Recent trade status transitions",
		},
		[]string{"provider", "to"},
	)
)

type TrackerMetrics struct{}

func NewTrackerMetrics() *TrackerMetrics {
	return &TrackerMetrics{}
}

func (tm *TrackerMetrics) RecordPoll(provider string, success bool) {
	trackerPollsTotal.WithLabelValues(provider, statusLabel(success)).Inc()
}

func (tm *TrackerMetrics) RecordTransition(provider, to string) {
	trackerTransitionsTotal.WithLabelValues(provider, to).Inc()
}
