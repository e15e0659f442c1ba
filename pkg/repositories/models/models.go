package models

import (
	"time"

	"github.com/cbodonnell/cardroom/pkg/rooms"
)

// Room is the durable record of a room as read back from storage.
type Room struct {
	GameID    string       `json:"game_id"`
	OwnerID   string       `json:"owner_id"`
	Status    rooms.Status `json:"status"`
	Players   []Member     `json:"players"`
	Teams     Teams        `json:"teams"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Member is one membership row of a room.
type Member struct {
	PlayerID    string     `json:"player_id"`
	Username    string     `json:"username"`
	IsReady     bool       `json:"is_ready"`
	Team        rooms.Team `json:"team"`
	IsConnected bool       `json:"is_connected"`
	JoinedAt    time.Time  `json:"joined_at"`
}

type Teams struct {
	A []string `json:"A"`
	B []string `json:"B"`
}

// Member returns the membership row for playerID.
func (r *Room) Member(playerID string) (*Member, bool) {
	for i := range r.Players {
		if r.Players[i].PlayerID == playerID {
			return &r.Players[i], true
		}
	}
	return nil, false
}

// BuildTeams fills Teams from the members' team column.
func (r *Room) BuildTeams() {
	r.Teams = Teams{A: []string{}, B: []string{}}
	for _, m := range r.Players {
		switch m.Team {
		case rooms.TeamA:
			r.Teams.A = append(r.Teams.A, m.PlayerID)
		case rooms.TeamB:
			r.Teams.B = append(r.Teams.B, m.PlayerID)
		}
	}
}
