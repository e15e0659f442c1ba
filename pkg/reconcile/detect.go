package reconcile

import (
	"time"

	"github.com/cbodonnell/cardroom/pkg/repositories/models"
	"github.com/cbodonnell/cardroom/pkg/rooms"
)

// DetectInconsistencies compares a live snapshot against the durable record.
// Players that only exist live are not reported: their membership may still be on its way to storage.
func DetectInconsistencies(live *rooms.RoomState, durable *models.Room, now time.Time) []Inconsistency {
	found := make([]Inconsistency, 0)
	add := func(t InconsistencyType, playerID string, liveValue, durableValue interface{}) {
		found = append(found, Inconsistency{
			Type:         t,
			GameID:       durable.GameID,
			PlayerID:     playerID,
			LiveValue:    liveValue,
			DurableValue: durableValue,
			Severity:     SeverityOf(t),
			Timestamp:    now,
		})
	}

	for _, m := range durable.Players {
		p, ok := live.Players[m.PlayerID]
		if !ok {
			add(PlayerMissing, m.PlayerID, nil, m.PlayerID)
			continue
		}
		if p.IsReady != m.IsReady {
			add(ReadyMismatch, m.PlayerID, p.IsReady, m.IsReady)
		}
		if p.Team != m.Team {
			add(TeamConflict, m.PlayerID, p.Team, m.Team)
		}
		if p.IsConnected != m.IsConnected {
			add(ConnectionMismatch, m.PlayerID, p.IsConnected, m.IsConnected)
		}
	}

	if durable.OwnerID != "" && live.HostID != durable.OwnerID {
		add(HostMismatch, "", live.HostID, durable.OwnerID)
	}
	if durable.Status != "" && live.Status != durable.Status {
		add(StatusMismatch, "", live.Status, durable.Status)
	}

	SortBySeverity(found)
	return found
}
