package rooms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlayerState_connectionInvariants(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &PlayerState{PlayerID: "a"}

	p.MarkConnected("conn-1", t0)
	assert.True(t, p.IsConnected)
	assert.Nil(t, p.DisconnectedAt)
	assert.Nil(t, p.ReconnectedAt)

	p.MarkDisconnected(t0.Add(time.Minute))
	assert.False(t, p.IsConnected)
	assert.Empty(t, p.ConnectionRef)
	if assert.NotNil(t, p.DisconnectedAt) {
		assert.Equal(t, t0.Add(time.Minute), *p.DisconnectedAt)
	}
	assert.Equal(t, 4*time.Minute, p.DisconnectedFor(t0.Add(5*time.Minute)))

	// a second disconnect keeps the original timestamp
	p.MarkDisconnected(t0.Add(2 * time.Minute))
	assert.Equal(t, t0.Add(time.Minute), *p.DisconnectedAt)

	p.MarkConnected("conn-2", t0.Add(3*time.Minute))
	assert.True(t, p.IsConnected)
	assert.Nil(t, p.DisconnectedAt)
	if assert.NotNil(t, p.ReconnectedAt) {
		assert.Equal(t, t0.Add(3*time.Minute), *p.ReconnectedAt)
	}
	assert.Zero(t, p.DisconnectedFor(t0.Add(time.Hour)))
}

func TestRoomState_TeamMembersAndCopy(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	room := NewRoomState("r1")
	room.AddPlayer(&PlayerState{PlayerID: "b", Team: TeamA, JoinedAt: t0.Add(time.Second)})
	room.AddPlayer(&PlayerState{PlayerID: "a", Team: TeamA, JoinedAt: t0.Add(time.Second)})
	room.AddPlayer(&PlayerState{PlayerID: "c", Team: TeamB, JoinedAt: t0})

	assert.Equal(t, []string{"a", "b"}, room.TeamMembers(TeamA))
	assert.Equal(t, []string{"c"}, room.TeamMembers(TeamB))
	assert.Empty(t, room.TeamMembers(TeamNone))
	assert.Equal(t, "c", room.EarliestJoined())

	c := room.Copy()
	assert.True(t, room.Equal(c))
	c.Players["a"].Team = TeamB
	assert.False(t, room.Equal(c))
	assert.Equal(t, TeamA, room.Players["a"].Team)

	// moving a player between teams can't leave them in both
	room.Players["a"].Team = TeamB
	assert.Equal(t, []string{"b"}, room.TeamMembers(TeamA))
	assert.Equal(t, []string{"a", "c"}, room.TeamMembers(TeamB))
}
