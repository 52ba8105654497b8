package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	executorExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Trade executions by provider and status",
		},
		[]string{"provider", "status"}, // success, submitted_error, error
	)

	executorApprovalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "approvals_total",
			Help:      "Allowance transactions by provider and status",
		},
		[]string{"provider", "status"},
	)

	executorRelayTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "relay_notifications_total",
			Help:      "Best-effort side notifications after a hash was assigned",
		},
		[]string{"target", "status"}, // relay or provider; success, error
	)
)

// Execution status labels.
const (
	StatusSuccess        = "success"
	StatusError          = "error"
	StatusSubmittedError = "submitted_error"
)

type ExecutorMetrics struct{}

func NewExecutorMetrics() *ExecutorMetrics {
	return &ExecutorMetrics{}
}

func (em *ExecutorMetrics) RecordExecution(provider, status string) {
	executorExecutionsTotal.WithLabelValues(provider, status).Inc()
}

func (em *ExecutorMetrics) RecordApproval(provider string, success bool) {
	executorApprovalsTotal.WithLabelValues(provider, statusLabel(success)).Inc()
}

func (em *ExecutorMetrics) RecordNotification(target string, success bool) {
	executorRelayTotal.WithLabelValues(target, statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusError
}
