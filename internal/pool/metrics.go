package pool

import "github.com/prometheus/client_golang/prometheus"

// Metric label values.
const (
	evictIdle    = "idle"
	evictTimeout = "timeout"
	evictError   = "error"

	dispatchSent    = "sent"
	dispatchOK      = "ok"
	dispatchFailed  = "failed"
	dispatchTimeout = "timeout"
)

var (
	workersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "woffle_pool_workers_active",
			Help: "Number of live subset workers, idle or busy.",
		},
	)

	workersLaunchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "woffle_pool_workers_launched_total",
			Help: "Total number of subset workers launched.",
		},
	)

	workersEvictedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "woffle_pool_workers_evicted_total",
			Help: "Total number of subset workers destroyed, by reason.",
		},
		[]string{"reason"},
	)

	dispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "woffle_pool_dispatches_total",
			Help: "Total number of tasks dispatched to workers, by outcome.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(workersActive)
	prometheus.MustRegister(workersLaunchedTotal)
	prometheus.MustRegister(workersEvictedTotal)
	prometheus.MustRegister(dispatchesTotal)

	// Pre-initialize label combinations so they appear in /metrics with
	// value 0 from startup, rather than only after first observation.
	for _, reason := range []string{evictIdle, evictTimeout, evictError} {
		workersEvictedTotal.WithLabelValues(reason)
	}
	for _, status := range []string{dispatchSent, dispatchOK, dispatchFailed, dispatchTimeout} {
		dispatchesTotal.WithLabelValues(status)
	}
}
