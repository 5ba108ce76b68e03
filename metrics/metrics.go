// Package metrics holds the Prometheus collectors shared by the reader.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hnreader"

var (
	// UpstreamRequests counts requests to the Hacker News API.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the Hacker News API",
		},
		[]string{"endpoint", "outcome"},
	)

	// BatchOutcomes counts per-id results of batch fetches.
	BatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_outcomes_total",
			Help:      "Per-id outcomes of batch fetches",
		},
		[]string{"kind", "result"},
	)

	// PersistErrors counts saved-items storage failures by operation (read, write, notify).
	PersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saved_persist_errors_total",
			Help:      "Saved-items storage failures",
		},
		[]string{"op"},
	)

	// SavedItems tracks the size of the saved mapping.
	SavedItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "saved_items",
			Help:      "Number of saved items in the current mapping",
		},
	)

	// EventSubscribers tracks connected SSE clients.
	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers",
			Help:      "Connected server-sent-event subscribers",
		},
	)
)
