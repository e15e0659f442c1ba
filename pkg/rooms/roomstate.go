package rooms

import (
	"sort"
	"time"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusAbandoned Status = "abandoned"
)

// RoomState is the live view of a room's membership.
// Team membership lives on each PlayerState, so team sets are always
// derived from Players and can't drift from them.
type RoomState struct {
	GameID         string
	Players        map[string]*PlayerState
	HostID         string
	Status         Status
	Version        int64
	LastReconciled time.Time
}

func NewRoomState(gameID string) *RoomState {
	return &RoomState{
		GameID:  gameID,
		Players: make(map[string]*PlayerState),
		Status:  StatusWaiting,
	}
}

func (r *RoomState) Copy() *RoomState {
	c := &RoomState{
		GameID:         r.GameID,
		Players:        make(map[string]*PlayerState, len(r.Players)),
		HostID:         r.HostID,
		Status:         r.Status,
		Version:        r.Version,
		LastReconciled: r.LastReconciled,
	}
	for id, p := range r.Players {
		c.Players[id] = p.Copy()
	}
	return c
}

func (r *RoomState) AddPlayer(p *PlayerState) {
	r.Players[p.PlayerID] = p
}

func (r *RoomState) RemovePlayer(playerID string) {
	delete(r.Players, playerID)
}

// TeamMembers returns the sorted ids of the players on team.
func (r *RoomState) TeamMembers(team Team) []string {
	ids := make([]string, 0)
	for id, p := range r.Players {
		if p.Team == team {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ConnectedCount returns the number of players with a live connection.
func (r *RoomState) ConnectedCount() int {
	n := 0
	for _, p := range r.Players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// OrderedPlayers returns copies of the players ordered by join time, then id.
func (r *RoomState) OrderedPlayers() []*PlayerState {
	players := make([]*PlayerState, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p.Copy())
	}
	sort.Slice(players, func(i, j int) bool {
		if !players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].JoinedAt.Before(players[j].JoinedAt)
		}
		return players[i].PlayerID < players[j].PlayerID
	})
	return players
}

// EarliestJoined returns the id of the longest-standing player, or "" for an empty room.
func (r *RoomState) EarliestJoined() string {
	players := r.OrderedPlayers()
	if len(players) == 0 {
		return ""
	}
	return players[0].PlayerID
}

// Equal compares membership, host and status. Version and LastReconciled
// are bookkeeping and are ignored.
func (r *RoomState) Equal(other *RoomState) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.GameID != other.GameID || r.HostID != other.HostID || r.Status != other.Status {
		return false
	}
	if len(r.Players) != len(other.Players) {
		return false
	}
	for id, p := range r.Players {
		if !p.Equal(other.Players[id]) {
			return false
		}
	}
	return true
}
