package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/cbodonnell/cardroom/pkg/repositories/models"
	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

// testRepositoryContract exercises the behaviour every Repository implementation shares.
func testRepositoryContract(t *testing.T, repo Repository, clock fakeClock) {
	ctx := context.Background()
	t0 := clock.Now()

	t.Run("missing room", func(t *testing.T) {
		_, err := repo.FindByID(ctx, "nope")
		assert.True(t, IsNotFound(err))
	})

	t.Run("room with members", func(t *testing.T) {
		require.NoError(t, repo.UpsertRoom(ctx, "r1", "a", rooms.StatusWaiting))
		require.NoError(t, repo.UpsertPlayer(ctx, "r1", models.Member{
			PlayerID: "b", Username: "bob", Team: rooms.TeamA, JoinedAt: t0.Add(time.Second),
		}))
		require.NoError(t, repo.UpsertPlayer(ctx, "r1", models.Member{
			PlayerID: "a", Username: "alice", IsReady: true, Team: rooms.TeamA, IsConnected: true, JoinedAt: t0,
		}))
		require.NoError(t, repo.UpsertPlayer(ctx, "r1", models.Member{
			PlayerID: "d", Username: "dan", IsReady: true, Team: rooms.TeamB, JoinedAt: t0.Add(2 * time.Second),
		}))

		room, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "a", room.OwnerID)
		assert.Equal(t, rooms.StatusWaiting, room.Status)
		require.Len(t, room.Players, 3)
		assert.Equal(t, "a", room.Players[0].PlayerID)
		assert.True(t, room.Players[0].IsReady)
		assert.True(t, room.Players[0].IsConnected)
		assert.Equal(t, t0.UnixMilli(), room.Players[0].JoinedAt.UnixMilli())
		assert.Equal(t, []string{"a", "b"}, room.Teams.A)
		assert.Equal(t, []string{"d"}, room.Teams.B)
	})

	t.Run("row level updates", func(t *testing.T) {
		require.NoError(t, repo.UpdatePlayerConnection(ctx, "r1", "a", false))
		require.NoError(t, repo.UpdateOwner(ctx, "r1", "b"))
		require.NoError(t, repo.DeletePlayer(ctx, "r1", "d"))
		require.NoError(t, repo.UpdateStatus(ctx, "r1", rooms.StatusPlaying))

		room, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "b", room.OwnerID)
		assert.Equal(t, rooms.StatusPlaying, room.Status)
		require.Len(t, room.Players, 2)
		a, ok := room.Member("a")
		require.True(t, ok)
		assert.False(t, a.IsConnected)
		assert.Empty(t, room.Teams.B)
	})

	t.Run("orphan candidates", func(t *testing.T) {
		require.NoError(t, repo.UpsertPlayer(ctx, "r2", models.Member{PlayerID: "x", JoinedAt: clock.Now()}))
		require.NoError(t, repo.UpsertRoom(ctx, "empty", "", rooms.StatusWaiting))

		clock.Advance(2 * time.Hour)
		require.NoError(t, repo.UpsertPlayer(ctx, "r2", models.Member{PlayerID: "y", JoinedAt: clock.Now()}))

		ids, err := repo.ListOrphanCandidates(ctx, clock.Now().Add(-time.Hour))
		require.NoError(t, err)
		// r2 was touched recently and "empty" has no members
		assert.Equal(t, []string{"r1"}, ids)

		n, err := repo.DeleteMemberships(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		require.NoError(t, repo.UpdateStatus(ctx, "r1", rooms.StatusAbandoned))

		room, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Empty(t, room.Players)
		assert.Equal(t, rooms.StatusAbandoned, room.Status)
	})
}

func TestSQLiteRepository(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	repo, err := NewSQLiteRepository(ctx, ":memory:", clock)
	require.NoError(t, err)
	defer repo.Close(ctx)

	testRepositoryContract(t, repo, clock)
}
