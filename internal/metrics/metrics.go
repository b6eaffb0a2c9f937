// Package metrics declares the Prometheus collectors shared across the
// server. Collectors register on the default registry at init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OracleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursewell_oracle_calls_total",
			Help: "Language and embedding oracle calls by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursewell_oracle_duration_seconds",
			Help:    "Latency of oracle calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"purpose"},
	)

	Turns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursewell_dialogue_turns_total",
			Help: "Dialogue turns by intent and outcome kind",
		},
		[]string{"intent", "kind"},
	)

	ChaptersCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coursewell_chapters_completed_total",
			Help: "Chapter completions that raised an enrollment",
		},
	)

	RetrievalCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursewell_retrieval_cache_total",
			Help: "Retrieval table lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursewell_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveOracle records one oracle call.
func ObserveOracle(purpose string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	OracleCalls.WithLabelValues(purpose, outcome).Inc()
	OracleDuration.WithLabelValues(purpose).Observe(time.Since(started).Seconds())
}
