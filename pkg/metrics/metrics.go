// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardroom_reconciliations_total",
		Help: "Reconciliation attempts by outcome",
	}, []string{"outcome"})

	InconsistenciesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardroom_inconsistencies_total",
		Help: "Inconsistencies detected between live and durable room state",
	}, []string{"type", "severity"})

	ReconciliationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cardroom_reconciliation_tick_duration_seconds",
		Help:    "Duration of a reconciliation tick across all active rooms",
		Buckets: prometheus.DefBuckets,
	})

	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cardroom_active_rooms",
		Help: "Rooms with at least one connected player at the last reconciliation tick",
	})

	StaleConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardroom_stale_connections_total",
		Help: "Players flipped to disconnected by cleanup",
	})

	PlayersRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardroom_players_removed_total",
		Help: "Players removed after staying disconnected past the stale threshold",
	})

	RoomsAbandonedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardroom_rooms_abandoned_total",
		Help: "Rooms marked abandoned, by the path that abandoned them",
	}, []string{"source"})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardroom_alerts_total",
		Help: "Monitoring alerts raised",
	}, []string{"type"})

	ReliableEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardroom_reliable_events_total",
		Help: "Critical events by delivery outcome",
	}, []string{"event", "outcome"})

	PendingEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cardroom_pending_events",
		Help: "Critical events awaiting confirmation",
	})

	PersistQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardroom_persist_queue_dropped_total",
		Help: "Persistence requests dropped because the queue was full",
	})

	PersistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardroom_persist_failures_total",
		Help: "Persistence requests that failed against the repository",
	})

	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cardroom_connections",
		Help: "Open client connections",
	})
)
