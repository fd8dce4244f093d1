// Package metrics defines and registers all custom Prometheus metrics for the
// identity API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry at package init
// through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Credential lifecycle ──────────────────────────────────────────────────────

// AuthenticationsTotal counts authentication attempts.
// Label:
//   - outcome: the resulting error code name (e.g. "NoError", "EmailOrPasswordIncorrect")
//     or "integrity_fault"
var AuthenticationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authentications_total",
		Help:      "Total number of authentication attempts, by outcome.",
	},
	[]string{"outcome"},
)

// UserOperationsTotal counts user lifecycle operations.
// Labels:
//   - operation: "register", "confirm_email", "request_password_reset", "reset_password"
//   - outcome: the resulting error code name
var UserOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_operations_total",
		Help:      "Total number of user lifecycle operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// ── Roles ─────────────────────────────────────────────────────────────────────

// RoleOperationsTotal counts role management operations.
// Labels:
//   - operation: "create", "update", "add_claims", "remove_from_user"
//   - outcome: the resulting error code name
var RoleOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_operations_total",
		Help:      "Total number of role management operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// ── Email ─────────────────────────────────────────────────────────────────────

// EmailsTotal counts outbound email deliveries.
// Label:
//   - result: "sent", "failed" or "skipped" (no mail host configured)
var EmailsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_total",
		Help:      "Total number of outbound emails, by delivery result.",
	},
	[]string{"result"},
)

// EmailQueueDepth tracks the number of emails waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EmailQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "email_queue_depth",
		Help:      "Current number of emails pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// EmailDeliveryDuration measures how long a single SMTP delivery takes.
var EmailDeliveryDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "email_delivery_duration_seconds",
		Help:      "Duration of a single email delivery from dequeue to SMTP acknowledgement.",
		Buckets:   prometheus.DefBuckets,
	},
)
