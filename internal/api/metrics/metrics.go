// Package metrics defines and registers all custom Prometheus metrics for the
// user directory service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "userdir"

// ── User lifecycle metrics ────────────────────────────────────────────────────

// UserOperationsTotal counts lifecycle operations by result.
// Labels:
//   - operation: "list", "get", "create", "reactivate", "update" or "delete"
//   - outcome: "success", "validation_failed", "not_found", "conflict" or "store_failure"
var UserOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_operations_total",
		Help:      "Total number of user lifecycle operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// ValidationViolationsTotal counts individual rule violations.
// Label:
//   - code: violation code (e.g. "duplicate-active-email", "invalid-role")
var ValidationViolationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_violations_total",
		Help:      "Total number of validation violations reported to callers.",
	},
	[]string{"code"},
)

// RoleIntegrityWarningsTotal counts users found holding more than one role.
var RoleIntegrityWarningsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_integrity_warnings_total",
		Help:      "Total number of reads that found a user holding more than one role.",
	},
)

// ── Event metrics ─────────────────────────────────────────────────────────────

// EventsDeliveredTotal counts lifecycle events handed to a sink successfully.
// Labels:
//   - type: event type (e.g. "user.created")
//   - sink: sink name (e.g. "rabbitmq", "mailgun")
var EventsDeliveredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_delivered_total",
		Help:      "Total number of lifecycle events delivered to a sink.",
	},
	[]string{"type", "sink"},
)

// EventsErrorsTotal counts failed deliveries.
// Label:
//   - sink: sink name, or "dispatcher" when the event never reached a worker
var EventsErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_errors_total",
		Help:      "Total number of lifecycle events that failed delivery.",
	},
	[]string{"sink"},
)

// EventsQueueDepth tracks the current number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_queue_depth",
		Help:      "Current number of events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// EventDeliveryDuration measures how long a single sink takes to handle an event.
// Label:
//   - sink: sink name
var EventDeliveryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "event_delivery_duration_seconds",
		Help:      "Duration of event delivery from dequeue to sink acknowledgement.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"sink"},
)
