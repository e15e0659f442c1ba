package reconcile

import (
	"encoding/json"
	"sort"
	"time"
)

// InconsistencyType identifies which field class diverged between the live and durable views.
type InconsistencyType int

const (
	PlayerMissing InconsistencyType = iota
	ReadyMismatch
	TeamConflict
	HostMismatch
	ConnectionMismatch
	StatusMismatch

	numInconsistencyTypes
)

var inconsistencyTypeNames = [numInconsistencyTypes]string{
	PlayerMissing:      "player_missing",
	ReadyMismatch:      "ready_mismatch",
	TeamConflict:       "team_conflict",
	HostMismatch:       "host_mismatch",
	ConnectionMismatch: "connection_mismatch",
	StatusMismatch:     "status_mismatch",
}

func (t InconsistencyType) String() string {
	if t < 0 || t >= numInconsistencyTypes {
		return "unknown"
	}
	return inconsistencyTypeNames[t]
}

func (t InconsistencyType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

var severities = [numInconsistencyTypes]Severity{
	PlayerMissing:      SeverityHigh,
	ReadyMismatch:      SeverityMedium,
	TeamConflict:       SeverityMedium,
	HostMismatch:       SeverityCritical,
	ConnectionMismatch: SeverityLow,
	StatusMismatch:     SeverityMedium,
}

// SeverityOf returns the fixed severity of an inconsistency type.
func SeverityOf(t InconsistencyType) Severity {
	if t < 0 || t >= numInconsistencyTypes {
		return SeverityLow
	}
	return severities[t]
}

type Inconsistency struct {
	Type         InconsistencyType `json:"type"`
	GameID       string            `json:"gameId"`
	PlayerID     string            `json:"playerId,omitempty"`
	LiveValue    interface{}       `json:"liveValue"`
	DurableValue interface{}       `json:"durableValue"`
	Severity     Severity          `json:"severity"`
	Timestamp    time.Time         `json:"timestamp"`
}

// SortBySeverity orders inconsistencies critical first, keeping discovery order within a severity.
func SortBySeverity(inconsistencies []Inconsistency) {
	sort.SliceStable(inconsistencies, func(i, j int) bool {
		return inconsistencies[i].Severity > inconsistencies[j].Severity
	})
}
