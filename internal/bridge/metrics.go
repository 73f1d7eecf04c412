package bridge

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for native plugin calls.
var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plugin_calls_total",
			Help: "Total number of native plugin route invocations.",
		},
		[]string{"plugin", "route", "status"},
	)
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plugin_call_duration_seconds",
			Help:    "Native plugin call duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"plugin", "route"},
	)
)

func init() {
	prometheus.MustRegister(callsTotal)
	prometheus.MustRegister(callDuration)
}
