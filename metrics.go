package woffle

import "github.com/prometheus/client_golang/prometheus"

var (
	subsetDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "woffle_subset_duration_seconds",
			Help:    "Duration of subset requests in seconds, by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	fallbackEngaged = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "woffle_fallback_engaged",
			Help: "1 once background subsetting has been permanently disabled.",
		},
	)
)

func init() {
	prometheus.MustRegister(subsetDuration)
	prometheus.MustRegister(fallbackEngaged)

	for _, route := range []string{RouteWorker, RouteInline, RouteOriginal} {
		subsetDuration.WithLabelValues(route)
	}
}
