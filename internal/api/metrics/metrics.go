// Package metrics defines and registers all custom Prometheus metrics for
// the food-bank platform API. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics register with the default Prometheus registry at package init;
// the /metrics route exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "foodbank"

// AuthResultsTotal counts authentication gate outcomes.
// Label:
//   - outcome: "missing", "invalid", "expired" or "ok"
var AuthResultsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_results_total",
		Help:      "Total number of authentication attempts, by outcome.",
	},
	[]string{"outcome"},
)

// GuardDenialsTotal counts authorization guard denials.
// Label:
//   - guard: "role" or "capability"
var GuardDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_denials_total",
		Help:      "Total number of requests denied by an authorization guard.",
	},
	[]string{"guard"},
)

// MaintenanceRejectionsTotal counts requests short-circuited by the
// maintenance gate.
var MaintenanceRejectionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "maintenance_rejections_total",
		Help:      "Total number of requests rejected while in maintenance mode.",
	},
)

// SessionRefreshTotal counts refresh-endpoint outcomes.
// Label:
//   - result: "rotated", "conflict" or "denied"
var SessionRefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_refresh_total",
		Help:      "Total number of session refresh attempts, by result.",
	},
	[]string{"result"},
)

// CSRFRejectionsTotal counts requests rejected by the CSRF middleware.
var CSRFRejectionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "csrf_rejections_total",
		Help:      "Total number of requests rejected for a missing or stale CSRF token.",
	},
)
