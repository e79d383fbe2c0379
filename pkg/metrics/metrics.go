// Package metrics provides Prometheus collectors for sync observability.
// Counters are labeled by table so per-entity sync health is visible.
//
// Example usage:
//
//	metrics.RecordsFetched.WithLabelValues("products").Add(float64(n))
//	metrics.SyncRuns.WithLabelValues("products", "success").Inc()
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsFetched counts rows read from the external database
	RecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tributary_records_fetched_total",
			Help: "Total records fetched from the external database",
		},
		[]string{"table"},
	)

	// RecordsInserted counts rows inserted into the internal database
	RecordsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tributary_records_inserted_total",
			Help: "Total records inserted into the internal database",
		},
		[]string{"table"},
	)

	// RecordsUpdated counts rows updated in the internal database
	RecordsUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tributary_records_updated_total",
			Help: "Total records updated in the internal database",
		},
		[]string{"table"},
	)

	// RecordsFailed counts rows that could not be loaded
	RecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tributary_records_failed_total",
			Help: "Total records that failed to load",
		},
		[]string{"table"},
	)

	// SyncRuns counts completed sync passes by outcome
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tributary_sync_runs_total",
			Help: "Total sync passes by table and status",
		},
		[]string{"table", "status"},
	)

	// SyncDuration observes wall-clock duration of table sync passes
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tributary_sync_duration_seconds",
			Help:    "Duration of table sync passes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"table"},
	)
)
