package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	cyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uptrends_cycles_total",
			Help: "Total number of completed polling cycles",
		},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "uptrends_cycle_duration_seconds",
			Help:    "Wall time of a full polling cycle in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uptrends_requests_total",
			Help: "Total number of API requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uptrends_request_duration_seconds",
			Help:    "API request latency in seconds, including retries",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	requestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uptrends_request_retries_total",
			Help: "Total number of request retries by operation",
		},
		[]string{"operation"},
	)

	recordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uptrends_records_emitted_total",
			Help: "Total number of records handed to the sink",
		},
		[]string{"operation"},
	)

	recordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uptrends_records_dropped_total",
			Help: "Total number of records dropped because they could not be built or emitted",
		},
		[]string{"operation"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordCycle(duration time.Duration) {
	cyclesTotal.Inc()
	cycleDuration.Observe(duration.Seconds())
}

func RecordRequest(operation, outcome string, duration time.Duration, retries int) {
	requestsTotal.WithLabelValues(operation, outcome).Inc()
	requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if retries > 0 {
		requestRetries.WithLabelValues(operation).Add(float64(retries))
	}
}

func RecordEmitted(operation string) {
	recordsEmitted.WithLabelValues(operation).Inc()
}

func RecordDropped(operation string) {
	recordsDropped.WithLabelValues(operation).Inc()
}
