package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UsageRecordsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scangate_usage_records_created_total",
		Help: "The total number of usage records persisted",
	})

	DuplicatesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scangate_usage_duplicates_suppressed_total",
		Help: "Quick resubmits collapsed into an existing record",
	})

	UndoTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scangate_usage_undo_total",
		Help: "Undo attempts by outcome",
	}, []string{"outcome"})

	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scangate_usage_exports_total",
		Help: "Completed exports by format",
	}, []string{"format"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scangate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
