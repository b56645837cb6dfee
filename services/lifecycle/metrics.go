package lifecycle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeReady      = "ready"
	outcomeTransient  = "transient"
	outcomePersistent = "persistent"
	outcomeError      = "error"

	resultSuccess = "success"
	resultFailure = "failure"
)

var (
	startAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "useintest_start_attempts_total",
			Help: "Start attempts of service containers by outcome",
		},
		[]string{"service", "outcome"},
	)

	startDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "useintest_start_duration_seconds",
			Help:    "Time from start request until a service was ready or gave up",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		},
		[]string{"service", "result"},
	)
)

func recordAttempt(service, outcome string) {
	startAttempts.WithLabelValues(service, outcome).Inc()
}

func recordStart(service, result string, took time.Duration) {
	startDuration.WithLabelValues(service, result).Observe(took.Seconds())
}
