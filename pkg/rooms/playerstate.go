package rooms

import "time"

// Team is a player's side in a partnership game.
type Team string

const (
	TeamNone Team = ""
	TeamA    Team = "A"
	TeamB    Team = "B"
)

// Valid reports whether t is a known team value (including no team).
func (t Team) Valid() bool {
	return t == TeamNone || t == TeamA || t == TeamB
}

type PlayerState struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	// ConnectionRef identifies the live socket backing this player.
	// Empty means the player is not connected.
	ConnectionRef  string     `json:"-"`
	IsReady        bool       `json:"isReady"`
	Team           Team       `json:"team,omitempty"`
	IsConnected    bool       `json:"isConnected"`
	JoinedAt       time.Time  `json:"joinedAt"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty"`
	ReconnectedAt  *time.Time `json:"reconnectedAt,omitempty"`
}

func (p *PlayerState) Copy() *PlayerState {
	c := *p
	if p.DisconnectedAt != nil {
		t := *p.DisconnectedAt
		c.DisconnectedAt = &t
	}
	if p.ReconnectedAt != nil {
		t := *p.ReconnectedAt
		c.ReconnectedAt = &t
	}
	return &c
}

// MarkConnected binds the player to a live connection.
// A player that was previously disconnected gets ReconnectedAt stamped.
func (p *PlayerState) MarkConnected(connectionRef string, now time.Time) {
	if p.DisconnectedAt != nil {
		p.ReconnectedAt = &now
	}
	p.ConnectionRef = connectionRef
	p.IsConnected = connectionRef != ""
	p.DisconnectedAt = nil
}

// MarkDisconnected clears the connection and stamps DisconnectedAt.
// It is a no-op for a player that is already disconnected.
func (p *PlayerState) MarkDisconnected(now time.Time) {
	if !p.IsConnected && p.DisconnectedAt != nil {
		return
	}
	p.ConnectionRef = ""
	p.IsConnected = false
	p.DisconnectedAt = &now
}

// DisconnectedFor returns how long the player has been disconnected at now.
// Connected players, and disconnected players with no timestamp, report zero.
func (p *PlayerState) DisconnectedFor(now time.Time) time.Duration {
	if p.IsConnected || p.DisconnectedAt == nil {
		return 0
	}
	return now.Sub(*p.DisconnectedAt)
}

// Equal compares the membership fields of two players.
// Timestamps are bookkeeping and are not compared.
func (p *PlayerState) Equal(other *PlayerState) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.PlayerID == other.PlayerID &&
		p.Username == other.Username &&
		p.ConnectionRef == other.ConnectionRef &&
		p.IsReady == other.IsReady &&
		p.Team == other.Team &&
		p.IsConnected == other.IsConnected
}

// PlayerDelta is a partial update applied to a player by a live event.
// Nil fields are left untouched.
type PlayerDelta struct {
	Username      *string
	ConnectionRef *string
	IsReady       *bool
	Team          *Team
}
