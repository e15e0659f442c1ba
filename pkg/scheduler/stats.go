package scheduler

import (
	"time"

	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/reconcile"
)

// Stats are counted from process start or the last ResetStats.
type Stats struct {
	Successes            int64     `json:"successes"`
	Failures             int64     `json:"failures"`
	Skipped              int64     `json:"skipped"`
	TotalInconsistencies int64     `json:"totalInconsistencies"`
	VersionBumps         int64     `json:"versionBumps"`
	StaleConnections     int64     `json:"staleConnections"`
	LastCycleStale       int       `json:"lastCycleStaleConnections"`
	PlayersRemoved       int64     `json:"playersRemoved"`
	RoomsAbandoned       int64     `json:"roomsAbandoned"`
	OrphansSwept         int64     `json:"orphansSwept"`
	Since                time.Time `json:"since"`
	LastReconciliation   time.Time `json:"lastReconciliation"`
	LastCleanup          time.Time `json:"lastCleanup"`
	LastMonitoring       time.Time `json:"lastMonitoring"`
}

// Attempts counts the passes that ran. Skipped passes are excluded.
func (s Stats) Attempts() int64 {
	return s.Successes + s.Failures
}

func (s Stats) rates() (success, failure, inconsistency float64) {
	attempts := s.Attempts()
	if attempts == 0 {
		return 1, 0, 0
	}
	n := float64(attempts)
	return float64(s.Successes) / n, float64(s.Failures) / n, float64(s.TotalInconsistencies) / n
}

func (s Stats) alertStats() messages.AlertStats {
	success, failure, inconsistency := s.rates()
	return messages.AlertStats{
		Attempts:          s.Attempts(),
		SuccessRate:       success,
		FailureRate:       failure,
		InconsistencyRate: inconsistency,
		StaleConnections:  s.LastCycleStale,
	}
}

type Intervals struct {
	Reconciliation time.Duration `json:"reconciliation"`
	Cleanup        time.Duration `json:"cleanup"`
	Monitoring     time.Duration `json:"monitoring"`
}

type Status struct {
	IsRunning    bool             `json:"isRunning"`
	Intervals    Intervals        `json:"intervals"`
	Thresholds   Thresholds       `json:"thresholds"`
	Stats        Stats            `json:"stats"`
	ActiveRooms  int              `json:"activeRooms"`
	RoomVersions map[string]int64 `json:"roomVersions"`
}

type DetailedStats struct {
	Stats             Stats              `json:"stats"`
	Attempts          int64              `json:"attempts"`
	SuccessRate       float64            `json:"successRate"`
	FailureRate       float64            `json:"failureRate"`
	InconsistencyRate float64            `json:"inconsistencyRate"`
	LastAlerts        []messages.Alert   `json:"lastAlerts"`
	RecentPasses      []reconcile.Record `json:"recentPasses"`
	InFlight          []string           `json:"inFlight"`
	Config            Config             `json:"config"`
}
