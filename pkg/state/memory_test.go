package state

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestInMemoryRoomStore_ApplyPlayerDelta(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	store := NewInMemoryRoomStore(clock)

	_, err := store.ApplyPlayerDelta("missing", "a", rooms.PlayerDelta{})
	assert.True(t, errors.Is(err, ErrRoomNotFound))

	store.GetOrCreate("r1")
	room, err := store.ApplyPlayerDelta("r1", "a", rooms.PlayerDelta{
		Username:      strPtr("alice"),
		ConnectionRef: strPtr("conn-a"),
	})
	require.NoError(t, err)
	require.Contains(t, room.Players, "a")
	assert.Equal(t, "alice", room.Players["a"].Username)
	assert.True(t, room.Players["a"].IsConnected)
	assert.Equal(t, clock.Now(), room.Players["a"].JoinedAt)

	team := rooms.TeamB
	room, err = store.ApplyPlayerDelta("r1", "a", rooms.PlayerDelta{IsReady: boolPtr(true), Team: &team})
	require.NoError(t, err)
	assert.True(t, room.Players["a"].IsReady)
	assert.Equal(t, []string{"a"}, room.TeamMembers(rooms.TeamB))

	bad := rooms.Team("Z")
	_, err = store.ApplyPlayerDelta("r1", "a", rooms.PlayerDelta{Team: &bad, IsReady: boolPtr(false)})
	assert.Error(t, err)
	// a rejected delta leaves the room untouched
	snapshot, ok := store.Snapshot("r1")
	require.True(t, ok)
	assert.True(t, snapshot.Players["a"].IsReady)
}

func TestInMemoryRoomStore_MarkDisconnected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewInMemoryRoomStore(clock)
	store.GetOrCreate("r1")
	_, err := store.ApplyPlayerDelta("r1", "a", rooms.PlayerDelta{ConnectionRef: strPtr("conn-1")})
	require.NoError(t, err)

	// the player reconnected on a new socket before the old one closed
	_, err = store.ApplyPlayerDelta("r1", "a", rooms.PlayerDelta{ConnectionRef: strPtr("conn-2")})
	require.NoError(t, err)

	changed, err := store.MarkDisconnected("r1", "a", "conn-1")
	require.NoError(t, err)
	assert.False(t, changed)

	clock.Advance(time.Second)
	changed, err = store.MarkDisconnected("r1", "a", "conn-2")
	require.NoError(t, err)
	assert.True(t, changed)

	room, _ := store.Snapshot("r1")
	assert.False(t, room.Players["a"].IsConnected)
	require.NotNil(t, room.Players["a"].DisconnectedAt)
	assert.Equal(t, clock.Now(), *room.Players["a"].DisconnectedAt)

	_, err = store.MarkDisconnected("r1", "nobody", "conn-1")
	assert.True(t, errors.Is(err, ErrPlayerNotFound))
}

func TestInMemoryRoomStore_ActiveRoomsAndRemove(t *testing.T) {
	store := NewInMemoryRoomStore(clockwork.NewFakeClock())
	store.GetOrCreate("r1")
	store.GetOrCreate("r2")
	_, err := store.ApplyPlayerDelta("r2", "a", rooms.PlayerDelta{ConnectionRef: strPtr("c")})
	require.NoError(t, err)
	_, err = store.ApplyPlayerDelta("r1", "b", rooms.PlayerDelta{Username: strPtr("bob")})
	require.NoError(t, err)

	assert.Equal(t, []string{"r1", "r2"}, store.RoomIDs())
	assert.Equal(t, []string{"r2"}, store.ActiveRoomIDs())
	assert.Equal(t, map[string]int64{"r1": 0, "r2": 0}, store.Versions())

	assert.True(t, store.Remove("r2"))
	assert.False(t, store.Remove("r2"))
	_, ok := store.Snapshot("r2")
	assert.False(t, ok)
	_, err = store.Mutate("r2", func(*rooms.RoomState) error { return nil })
	assert.True(t, errors.Is(err, ErrRoomNotFound))
}

func TestInMemoryRoomStore_concurrentMutationsAreSerializedPerRoom(t *testing.T) {
	store := NewInMemoryRoomStore(clockwork.NewFakeClock())
	const roomCount = 4
	const perRoom = 200

	for r := 0; r < roomCount; r++ {
		store.GetOrCreate(fmt.Sprintf("r%d", r))
	}

	var wg sync.WaitGroup
	for r := 0; r < roomCount; r++ {
		for i := 0; i < perRoom; i++ {
			wg.Add(1)
			go func(gameID string) {
				defer wg.Done()
				_, err := store.Mutate(gameID, func(room *rooms.RoomState) error {
					room.Version++
					return nil
				})
				assert.NoError(t, err)
			}(fmt.Sprintf("r%d", r))
		}
	}
	wg.Wait()

	for id, version := range store.Versions() {
		assert.Equal(t, int64(perRoom), version, id)
	}
}

func TestInMemoryRoomStore_hostStatusAndRemoval(t *testing.T) {
	store := NewInMemoryRoomStore(clockwork.NewFakeClock())
	store.GetOrCreate("r1")
	_, err := store.ApplyPlayerDelta("r1", "a", rooms.PlayerDelta{ConnectionRef: strPtr("c")})
	require.NoError(t, err)

	_, err = store.SetHost("r1", "nobody")
	assert.True(t, errors.Is(err, ErrPlayerNotFound))
	room, err := store.SetHost("r1", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", room.HostID)

	room, err = store.SetStatus("r1", rooms.StatusPlaying)
	require.NoError(t, err)
	assert.Equal(t, rooms.StatusPlaying, room.Status)

	assert.False(t, store.RemoveIfEmpty("r1"))
	room, err = store.RemovePlayer("r1", "a")
	require.NoError(t, err)
	assert.Empty(t, room.Players)
	_, err = store.RemovePlayer("r1", "a")
	assert.True(t, errors.Is(err, ErrPlayerNotFound))

	assert.True(t, store.RemoveIfEmpty("r1"))
	assert.False(t, store.RemoveIfEmpty("r1"))
	assert.Empty(t, store.RoomIDs())
}
