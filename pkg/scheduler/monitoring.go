package scheduler

import (
	"fmt"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/metrics"
)

const (
	AlertHighFailureRate       = "HIGH_FAILURE_RATE"
	AlertHighInconsistencyRate = "HIGH_INCONSISTENCY_RATE"
	AlertHighStaleConnections  = "HIGH_STALE_CONNECTIONS"
)

// RunMonitoring evaluates the statistics against the alert thresholds.
// Alerts are logged and broadcast to every connection; they never stop the scheduler.
func (s *Scheduler) RunMonitoring() []messages.Alert {
	now := s.clock.Now()
	s.lock.Lock()
	stats := s.stats
	thresholds := s.config.Thresholds
	s.lock.Unlock()

	current := stats.alertStats()
	alerts := make([]messages.Alert, 0)
	if current.Attempts > 0 && current.FailureRate > thresholds.FailureRate {
		alerts = append(alerts, messages.Alert{
			Type:      AlertHighFailureRate,
			Message:   fmt.Sprintf("reconciliation failure rate %.1f%% exceeds %.1f%%", current.FailureRate*100, thresholds.FailureRate*100),
			Value:     current.FailureRate,
			Threshold: thresholds.FailureRate,
		})
	}
	if current.Attempts > 0 && current.InconsistencyRate > thresholds.InconsistencyRate {
		alerts = append(alerts, messages.Alert{
			Type:      AlertHighInconsistencyRate,
			Message:   fmt.Sprintf("%.2f inconsistencies per reconciliation exceeds %.2f", current.InconsistencyRate, thresholds.InconsistencyRate),
			Value:     current.InconsistencyRate,
			Threshold: thresholds.InconsistencyRate,
		})
	}
	if current.StaleConnections > thresholds.StaleConnections {
		alerts = append(alerts, messages.Alert{
			Type:      AlertHighStaleConnections,
			Message:   fmt.Sprintf("%d stale connections in the last cleanup exceeds %d", current.StaleConnections, thresholds.StaleConnections),
			Value:     float64(current.StaleConnections),
			Threshold: float64(thresholds.StaleConnections),
		})
	}

	s.lock.Lock()
	s.stats.LastMonitoring = now
	s.lastAlerts = alerts
	s.lock.Unlock()

	if len(alerts) == 0 {
		return alerts
	}
	for _, alert := range alerts {
		metrics.AlertsTotal.WithLabelValues(alert.Type).Inc()
		log.WithFields(log.Fields{"alert": alert.Type}).Warn("%s", alert.Message)
	}
	s.broadcaster.EmitAll(messages.MessageTypeReconciliationAlerts, messages.ReconciliationAlerts{
		Alerts:    alerts,
		Stats:     current,
		Timestamp: now,
	})
	return alerts
}
