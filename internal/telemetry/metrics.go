package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce    sync.Once
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	scorePercentage prometheus.Histogram
	staleRuns       prometheus.Counter
)

func registerMetrics() {
	registerOnce.Do(func() {
		backendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_backend_requests_total",
			Help: "Requests sent to the job portal backend, by operation and outcome.",
		}, []string{"operation", "outcome"})

		backendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_backend_latency_seconds",
			Help:    "Latency of requests sent to the job portal backend.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"})

		scorePercentage = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_score_percentage",
			Help:    "Distribution of computed coding assessment scores.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		})

		staleRuns = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_stale_runs_total",
			Help: "Code runs whose results were discarded because a newer run or question superseded them.",
		})

		prometheus.MustRegister(backendRequests, backendLatency, scorePercentage, staleRuns)
	})
}

// ObserveBackend records one backend call. outcome is "ok" or an error code name.
func ObserveBackend(operation, outcome string, d time.Duration) {
	registerMetrics()
	backendRequests.WithLabelValues(operation, outcome).Inc()
	backendLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func ObserveScore(percentage int) {
	registerMetrics()
	scorePercentage.Observe(float64(percentage))
}

func ObserveStaleRun() {
	registerMetrics()
	staleRuns.Inc()
}
