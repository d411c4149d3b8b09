// Package metrics exposes the process-wide Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsAppended counts committed events by aggregate kind.
	EventsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_events_appended_total",
		Help: "Events committed to the event store.",
	}, []string{"event_type"})

	// AppendConflicts counts optimistic concurrency failures.
	AppendConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_append_conflicts_total",
		Help: "Appends rejected due to version conflicts.",
	})

	// RateFetches counts provider fetch attempts by outcome.
	RateFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_rate_fetches_total",
		Help: "Exchange rate provider fetches.",
	}, []string{"provider", "outcome"})

	// OrdersRouted counts routing decisions by outcome.
	OrdersRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_orders_routed_total",
		Help: "Order routing decisions.",
	}, []string{"outcome"})

	// SpreadAdjustments counts spread changes applied by the controller.
	SpreadAdjustments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_spread_adjustments_total",
		Help: "Spread adjustments applied to pools.",
	})

	// SnapshotsTaken counts aggregate snapshots written.
	SnapshotsTaken = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_snapshots_taken_total",
		Help: "Aggregate snapshots written.",
	})
)
