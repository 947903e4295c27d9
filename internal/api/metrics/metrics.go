// Package metrics defines and registers all custom Prometheus metrics for the
// travel portal. It is the single source of truth for metric names, labels,
// and help strings.
//
// Collectors register with the default Prometheus registry on import via
// promauto; /metrics serves them alongside the HTTP middleware metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "travel_portal"

// ── Data store metrics ────────────────────────────────────────────────────────

// SnapshotsAppliedTotal counts collection snapshots applied to the in-memory store.
// Label:
//   - collection: users, itineraries, customers or bookings
var SnapshotsAppliedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_applied_total",
		Help:      "Total number of collection snapshots applied to the data store.",
	},
	[]string{"collection"},
)

// SnapshotSize tracks the document count of the latest snapshot per collection.
var SnapshotSize = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snapshot_documents",
		Help:      "Number of documents in the latest snapshot of each collection.",
	},
	[]string{"collection"},
)

// InitialLoadDuration measures activation-to-ready time of the data store.
// Label:
//   - outcome: "complete" (all four collections delivered) or "timeout"
var InitialLoadDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "initial_load_duration_seconds",
		Help:      "Time from data store activation until loading is cleared.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2, 3, 5},
	},
	[]string{"outcome"},
)

// MutationsTotal counts data store writes.
// Labels:
//   - op: mutator name (e.g. "add_booking", "update_collateral")
//   - result: "ok" or "error"
var MutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Total number of data store mutations, by operation and result.",
	},
	[]string{"op", "result"},
)

// ── Assist metrics ────────────────────────────────────────────────────────────

// AssistOperationsTotal counts generative assist calls.
// Labels:
//   - operation: summary, verify_document, collateral_feedback, recommendations, image
//   - result: "ok" or "error"
var AssistOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assist_operations_total",
		Help:      "Total number of generative assist operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// AssistQueueDepth tracks the number of queued checks per dispatcher worker.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AssistQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "assist_queue_depth",
		Help:      "Current number of assist checks pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionResolutionsTotal counts principal → user resolutions.
// Label:
//   - result: "matched", "fallback" (no user document) or "error"
var SessionResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_resolutions_total",
		Help:      "Total number of session resolutions, by result.",
	},
	[]string{"result"},
)

// BookingsCreatedTotal counts bookings written through the data store.
var BookingsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_created_total",
		Help:      "Total number of bookings created.",
	},
)
