package reconcile

import (
	"fmt"

	"github.com/cbodonnell/cardroom/pkg/repositories/models"
	"github.com/cbodonnell/cardroom/pkg/rooms"
)

// resolver fixes one inconsistency on a draft room.
type resolver func(room *rooms.RoomState, inc Inconsistency, durable *models.Room) error

// resolvers is indexed by InconsistencyType; every type must have an entry.
var resolvers = [numInconsistencyTypes]resolver{
	PlayerMissing:      resolvePlayerMissing,
	ReadyMismatch:      resolveReadyMismatch,
	TeamConflict:       resolveTeamConflict,
	HostMismatch:       resolveHostMismatch,
	ConnectionMismatch: resolveConnectionMismatch,
	StatusMismatch:     resolveStatusMismatch,
}

// Resolve applies one resolver per inconsistency to a copy of live, critical items first.
// A resolver that fails or panics is skipped and its error returned; the others still run.
func Resolve(inconsistencies []Inconsistency, durable *models.Room, live *rooms.RoomState) (*rooms.RoomState, []error) {
	ordered := make([]Inconsistency, len(inconsistencies))
	copy(ordered, inconsistencies)
	SortBySeverity(ordered)

	merged := live.Copy()
	var errs []error
	for _, inc := range ordered {
		next := merged.Copy()
		if err := runResolver(next, inc, durable); err != nil {
			errs = append(errs, fmt.Errorf("failed to resolve %s for %q: %w", inc.Type, inc.PlayerID, err))
			continue
		}
		merged = next
	}
	return merged, errs
}

func runResolver(room *rooms.RoomState, inc Inconsistency, durable *models.Room) (err error) {
	if inc.Type < 0 || inc.Type >= numInconsistencyTypes || resolvers[inc.Type] == nil {
		return fmt.Errorf("no resolver for inconsistency type %d", inc.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolver panicked: %v", r)
		}
	}()
	return resolvers[inc.Type](room, inc, durable)
}

func durableMember(durable *models.Room, playerID string) (*models.Member, error) {
	m, ok := durable.Member(playerID)
	if !ok {
		return nil, fmt.Errorf("player %s has no durable membership", playerID)
	}
	return m, nil
}

func livePlayer(room *rooms.RoomState, playerID string) (*rooms.PlayerState, error) {
	p, ok := room.Players[playerID]
	if !ok {
		return nil, fmt.Errorf("player %s is not in the live room", playerID)
	}
	return p, nil
}

// resolvePlayerMissing restores a durable member. Having no live socket, they
// start out disconnected so cleanup can retire them if they never come back.
func resolvePlayerMissing(room *rooms.RoomState, inc Inconsistency, durable *models.Room) error {
	m, err := durableMember(durable, inc.PlayerID)
	if err != nil {
		return err
	}
	if _, ok := room.Players[m.PlayerID]; ok {
		return nil
	}
	if inc.Timestamp.IsZero() {
		return fmt.Errorf("missing player %s has no detection timestamp", m.PlayerID)
	}
	disconnectedAt := inc.Timestamp
	room.AddPlayer(&rooms.PlayerState{
		PlayerID:       m.PlayerID,
		Username:       m.Username,
		IsReady:        m.IsReady,
		Team:           m.Team,
		IsConnected:    false,
		JoinedAt:       m.JoinedAt,
		DisconnectedAt: &disconnectedAt,
	})
	return nil
}

func resolveReadyMismatch(room *rooms.RoomState, inc Inconsistency, durable *models.Room) error {
	m, err := durableMember(durable, inc.PlayerID)
	if err != nil {
		return err
	}
	p, err := livePlayer(room, inc.PlayerID)
	if err != nil {
		return err
	}
	p.IsReady = m.IsReady
	return nil
}

func resolveTeamConflict(room *rooms.RoomState, inc Inconsistency, durable *models.Room) error {
	m, err := durableMember(durable, inc.PlayerID)
	if err != nil {
		return err
	}
	if !m.Team.Valid() {
		return fmt.Errorf("durable team %q is not a valid team", m.Team)
	}
	p, err := livePlayer(room, inc.PlayerID)
	if err != nil {
		return err
	}
	p.Team = m.Team
	return nil
}

func resolveHostMismatch(room *rooms.RoomState, inc Inconsistency, durable *models.Room) error {
	if durable.OwnerID == "" {
		return fmt.Errorf("durable record has no owner")
	}
	room.HostID = durable.OwnerID
	return nil
}

// resolveConnectionMismatch keeps the live value: only the live side sees sockets open and close.
func resolveConnectionMismatch(room *rooms.RoomState, inc Inconsistency, durable *models.Room) error {
	_, err := livePlayer(room, inc.PlayerID)
	return err
}

func resolveStatusMismatch(room *rooms.RoomState, inc Inconsistency, durable *models.Room) error {
	switch durable.Status {
	case rooms.StatusWaiting, rooms.StatusPlaying, rooms.StatusAbandoned:
		room.Status = durable.Status
		return nil
	default:
		return fmt.Errorf("unknown durable status %q", durable.Status)
	}
}
