// Package metrics exposes Prometheus instrumentation for the comment
// pipeline. Label cardinality is kept bounded: nothing user-supplied (room
// ids, user ids) is ever used as a label value.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CommentsIngested counts accepted submissions by ingestion path.
	CommentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comments_ingested_total",
			Help: "Total number of accepted comment submissions.",
		},
		[]string{"source"},
	)

	// CacheWriteFailures counts dropped hot-cache writes.
	CacheWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "comment_cache_write_failures_total",
			Help: "Total number of hot-cache writes that failed and were dropped.",
		},
	)

	// PersistEnqueued counts comments enqueued onto the durable queue.
	PersistEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "comments_persist_enqueued_total",
			Help: "Total number of comments enqueued for durable persistence.",
		},
	)

	// PersistStored counts comments committed to the primary store.
	PersistStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "comments_persist_stored_total",
			Help: "Total number of comments written to the primary store.",
		},
	)

	// DeadLettered counts queue entries diverted to the dead-letter stream.
	DeadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comments_dead_lettered_total",
			Help: "Total number of queue entries diverted to the dead-letter stream.",
		},
		[]string{"reason"},
	)

	// LiveConnections gauges currently attached socket connections.
	LiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "comment_live_connections",
			Help: "Current number of attached websocket connections.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CommentsIngested,
		CacheWriteFailures,
		PersistEnqueued,
		PersistStored,
		DeadLettered,
		LiveConnections,
	)
}
