package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

const namespace = "ccrouter"

// Service names accepted by RegisterMetrics.
const (
	ServiceAggregator = "aggregator"
	ServiceExecutor   = "executor"
	ServiceTracker    = "tracker"
	ServiceHTTP       = "http"
)

// RegisterMetrics registers the collectors for the given services on the
// default registry. Registering twice is harmless.
func RegisterMetrics(services []string, logger *logrus.Logger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)

	for _, service := range services {
		switch service {
		case ServiceAggregator:
			registerIfNotExists(aggregatorCyclesTotal, "aggregator_cycles_total", logger)
			registerIfNotExists(aggregatorProviderResultsTotal, "aggregator_provider_results_total", logger)
			registerIfNotExists(aggregatorProviderDuration, "aggregator_provider_duration", logger)
		case ServiceExecutor:
			registerIfNotExists(executorExecutionsTotal, "executor_executions_total", logger)
			registerIfNotExists(executorApprovalsTotal, "executor_approvals_total", logger)
			registerIfNotExists(executorRelayTotal, "executor_relay_total", logger)
		case ServiceTracker:
			registerIfNotExists(trackerPollsTotal, "tracker_polls_total", logger)
			registerIfNotExists(trackerTransitionsTotal, "tracker_transitions_total", logger)
		case ServiceHTTP:
			registerIfNotExists(httpRequestsTotal, "http_requests_total", logger)
			registerIfNotExists(httpRequestDuration, "http_request_duration", logger)
		default:
			logger.Warnf("Unknown service type for metrics registration: %s", service)
		}
	}
}

func registerIfNotExists(collector prometheus.Collector, name string, logger *logrus.Logger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debugf("%s already registered", name)
		} else {
			logger.Errorf("Failed to register %s: %v", name, err)
		}
	}
}
