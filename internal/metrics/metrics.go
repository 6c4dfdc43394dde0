// Package metrics registers the daemon's Prometheus instruments on the
// default registry; the MCP listener exposes them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hostsentry_events_enqueued_total",
		Help: "Events accepted into the writer queue, by type.",
	}, []string{"type"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostsentry_events_dropped_total",
		Help: "Events evicted from a full writer queue (oldest first).",
	})

	EventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostsentry_events_rejected_total",
		Help: "Events refused at the writer boundary (unknown type).",
	})

	BatchesCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostsentry_batches_committed_total",
		Help: "Write batches committed to SQLite.",
	})

	BatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostsentry_batch_failures_total",
		Help: "Write batches that failed to commit.",
	})

	VectorFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostsentry_vector_failures_total",
		Help: "Batches whose vector-index write failed after the SQL commit.",
	})
)
