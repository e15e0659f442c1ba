package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	mocks "github.com/cbodonnell/cardroom/mocks/github.com/cbodonnell/cardroom/pkg/repositories"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/reconcile"
	"github.com/cbodonnell/cardroom/pkg/repositories"
	"github.com/cbodonnell/cardroom/pkg/repositories/models"
	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/cbodonnell/cardroom/pkg/state"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type emitted struct {
	gameID  string
	event   string
	payload interface{}
}

type recordingBroadcaster struct {
	lock   sync.Mutex
	events []emitted
	notify chan emitted
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{notify: make(chan emitted, 64)}
}

func (b *recordingBroadcaster) Emit(gameID string, event string, payload interface{}) {
	b.record(emitted{gameID: gameID, event: event, payload: payload})
}

func (b *recordingBroadcaster) EmitAll(event string, payload interface{}) {
	b.record(emitted{event: event, payload: payload})
}

func (b *recordingBroadcaster) record(e emitted) {
	b.lock.Lock()
	b.events = append(b.events, e)
	b.lock.Unlock()
	select {
	case b.notify <- e:
	default:
	}
}

func (b *recordingBroadcaster) ofType(event string) []emitted {
	b.lock.Lock()
	defer b.lock.Unlock()
	out := make([]emitted, 0)
	for _, e := range b.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type aliveSet map[string]bool

func (a aliveSet) IsAlive(ref string) bool { return a[ref] }

type fixture struct {
	clock       *clockwork.FakeClock
	store       *state.InMemoryRoomStore
	repo        repositories.Repository
	engine      *reconcile.Engine
	broadcaster *recordingBroadcaster
	alive       aliveSet
	scheduler   *Scheduler
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	repo, err := repositories.NewSQLiteRepository(ctx, ":memory:", clock)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(ctx) })
	return newFixtureWithRepository(clock, repo)
}

func newFixtureWithRepository(clock *clockwork.FakeClock, repo repositories.Repository) *fixture {
	f := &fixture{
		clock:       clock,
		store:       state.NewInMemoryRoomStore(clock),
		repo:        repo,
		broadcaster: newRecordingBroadcaster(),
		alive:       aliveSet{},
	}
	f.engine = reconcile.NewEngine(reconcile.NewEngineOptions{
		Repository: repo,
		Live:       f.store,
		Clock:      clock,
	})
	f.scheduler = NewScheduler(NewSchedulerOptions{
		Store:       f.store,
		Engine:      f.engine,
		Repository:  repo,
		Connections: f.alive,
		Broadcaster: f.broadcaster,
		Clock:       clock,
		Config:      DefaultConfig(),
	})
	return f
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// join adds a player to the live store, connected on ref when ref is not empty.
func (f *fixture) join(t *testing.T, gameID, playerID, ref string) {
	f.store.GetOrCreate(gameID)
	_, err := f.store.ApplyPlayerDelta(gameID, playerID, rooms.PlayerDelta{
		Username:      strPtr(playerID),
		ConnectionRef: strPtr(ref),
	})
	require.NoError(t, err)
	if ref != "" {
		f.alive[ref] = true
	}
}

func TestScheduler_RunReconciliation_versionBumpsOnlyWhenChanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.join(t, "r1", "A", "c-a")
	f.join(t, "r1", "B", "")
	_, err := f.store.SetHost("r1", "A")
	require.NoError(t, err)

	require.NoError(t, f.repo.UpsertRoom(ctx, "r1", "A", rooms.StatusWaiting))
	require.NoError(t, f.repo.UpsertPlayer(ctx, "r1", models.Member{PlayerID: "A", Username: "A", IsReady: true, Team: rooms.TeamA, IsConnected: true, JoinedAt: t0}))
	require.NoError(t, f.repo.UpsertPlayer(ctx, "r1", models.Member{PlayerID: "B", Username: "B", IsConnected: true, JoinedAt: t0}))

	summary := f.scheduler.RunReconciliation(ctx)
	assert.Equal(t, 1, summary.Rooms)
	assert.Equal(t, 1, summary.Succeeded)
	// ready and team for A, connection for B
	assert.Equal(t, 3, summary.Inconsistencies)
	assert.Equal(t, 1, summary.VersionBumps)

	room, ok := f.store.Snapshot("r1")
	require.True(t, ok)
	assert.Equal(t, int64(1), room.Version)
	assert.True(t, room.Players["A"].IsReady)
	assert.Equal(t, rooms.TeamA, room.Players["A"].Team)
	assert.True(t, room.Players["A"].IsConnected)
	assert.False(t, room.Players["B"].IsConnected)

	reconciled := f.broadcaster.ofType(messages.MessageTypeStateReconciled)
	require.Len(t, reconciled, 1)
	payload := reconciled[0].payload.(messages.StateReconciled)
	assert.Equal(t, "r1", reconciled[0].gameID)
	assert.Equal(t, int64(1), payload.Version)
	assert.Len(t, payload.Players, 2)

	// the live connection flag was written back to storage
	durable, err := f.repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	b, _ := durable.Member("B")
	assert.False(t, b.IsConnected)

	summary = f.scheduler.RunReconciliation(ctx)
	assert.Equal(t, 0, summary.Inconsistencies)
	assert.Equal(t, 0, summary.VersionBumps)
	room, _ = f.store.Snapshot("r1")
	assert.Equal(t, int64(1), room.Version)
	assert.Len(t, f.broadcaster.ofType(messages.MessageTypeStateReconciled), 1)

	stats := f.scheduler.GetDetailedStats()
	assert.Equal(t, int64(2), stats.Attempts)
	assert.Equal(t, int64(3), stats.Stats.TotalInconsistencies)
	assert.Equal(t, int64(1), stats.Stats.VersionBumps)
	assert.Len(t, stats.RecentPasses, 2)
}

func TestScheduler_RunReconciliation_restoresMissingPlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.join(t, "r1", "A", "c-a")
	f.join(t, "r1", "C", "c-c")
	_, err := f.store.SetHost("r1", "A")
	require.NoError(t, err)

	require.NoError(t, f.repo.UpsertRoom(ctx, "r1", "A", rooms.StatusWaiting))
	require.NoError(t, f.repo.UpsertPlayer(ctx, "r1", models.Member{PlayerID: "A", Username: "A", IsConnected: true, JoinedAt: t0}))
	require.NoError(t, f.repo.UpsertPlayer(ctx, "r1", models.Member{PlayerID: "D", Username: "D", IsReady: true, Team: rooms.TeamB, JoinedAt: t0}))

	summary := f.scheduler.RunReconciliation(ctx)
	assert.Equal(t, 1, summary.Inconsistencies)

	room, _ := f.store.Snapshot("r1")
	assert.Contains(t, room.Players, "C")
	require.Contains(t, room.Players, "D")
	assert.False(t, room.Players["D"].IsConnected)
	assert.Equal(t, []string{"D"}, room.TeamMembers(rooms.TeamB))
	assert.Equal(t, reconcile.PlayerMissing, f.engine.History("r1")[0].Type)
}

func TestScheduler_RunReconciliation_isolatesFailures(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	repo := mocks.NewRepository(t)
	f := newFixtureWithRepository(clock, repo)

	failing := map[string]bool{}
	for i := 0; i < 100; i++ {
		gameID := fmt.Sprintf("room-%03d", i)
		if i < 15 {
			failing[gameID] = true
		}
		f.join(t, gameID, "p", "c-"+gameID)
		_, err := f.store.SetHost(gameID, "p")
		require.NoError(t, err)
	}

	repo.EXPECT().FindByID(mock.Anything, mock.Anything).RunAndReturn(func(ctx context.Context, gameID string) (*models.Room, error) {
		if failing[gameID] {
			return nil, errors.New("connection reset by peer")
		}
		return &models.Room{
			GameID:  gameID,
			OwnerID: "p",
			Status:  rooms.StatusWaiting,
			Players: []models.Member{{PlayerID: "p", Username: "p", IsConnected: true, JoinedAt: t0}},
		}, nil
	})

	summary := f.scheduler.RunReconciliation(ctx)
	assert.Equal(t, 100, summary.Rooms)
	assert.Equal(t, 85, summary.Succeeded)
	assert.Equal(t, 15, summary.Failed)
	assert.Equal(t, 0, summary.Inconsistencies)

	alerts := f.scheduler.RunMonitoring()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertHighFailureRate, alerts[0].Type)
	assert.InDelta(t, 0.15, alerts[0].Value, 1e-9)

	broadcast := f.broadcaster.ofType(messages.MessageTypeReconciliationAlerts)
	require.Len(t, broadcast, 1)
	assert.Empty(t, broadcast[0].gameID)
	assert.Equal(t, int64(100), broadcast[0].payload.(messages.ReconciliationAlerts).Stats.Attempts)

	f.scheduler.ResetStats()
	assert.Empty(t, f.scheduler.RunMonitoring())
	assert.Zero(t, f.scheduler.GetStatus().Stats.Failures)
}

func TestScheduler_RunMonitoring(t *testing.T) {
	tests := []struct {
		name  string
		stats Stats
		want  []string
	}{
		{name: "no attempts", stats: Stats{}, want: []string{}},
		{name: "healthy", stats: Stats{Successes: 95, Failures: 5, TotalInconsistencies: 10}, want: []string{}},
		{name: "at the failure threshold", stats: Stats{Successes: 90, Failures: 10}, want: []string{}},
		{name: "inconsistencies", stats: Stats{Successes: 10, TotalInconsistencies: 3}, want: []string{AlertHighInconsistencyRate}},
		{name: "stale connections", stats: Stats{LastCycleStale: 11}, want: []string{AlertHighStaleConnections}},
		{
			name:  "everything",
			stats: Stats{Successes: 1, Failures: 1, TotalInconsistencies: 5, LastCycleStale: 20},
			want:  []string{AlertHighFailureRate, AlertHighInconsistencyRate, AlertHighStaleConnections},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureWithRepository(clockwork.NewFakeClockAt(t0), nil)
			f.scheduler.stats = tt.stats

			got := make([]string, 0)
			for _, alert := range f.scheduler.RunMonitoring() {
				got = append(got, alert.Type)
			}
			assert.Equal(t, tt.want, got)
			if len(tt.want) == 0 {
				assert.Empty(t, f.broadcaster.ofType(messages.MessageTypeReconciliationAlerts))
			}
		})
	}
}

func TestScheduler_RunCleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.join(t, "r1", "A", "c-a")
	f.join(t, "r1", "B", "c-b")
	f.join(t, "r1", "C", "c-c")
	_, err := f.store.SetHost("r1", "C")
	require.NoError(t, err)
	_, err = f.store.MarkDisconnected("r1", "C", "c-c")
	require.NoError(t, err)
	f.join(t, "r2", "D", "c-d")
	_, err = f.store.MarkDisconnected("r2", "D", "c-d")
	require.NoError(t, err)

	require.NoError(t, f.repo.UpsertRoom(ctx, "r1", "C", rooms.StatusWaiting))
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, f.repo.UpsertPlayer(ctx, "r1", models.Member{PlayerID: id, IsConnected: id != "C", JoinedAt: t0}))
	}
	require.NoError(t, f.repo.UpsertRoom(ctx, "r2", "D", rooms.StatusWaiting))
	require.NoError(t, f.repo.UpsertPlayer(ctx, "r2", models.Member{PlayerID: "D", JoinedAt: t0}))
	require.NoError(t, f.repo.UpsertPlayer(ctx, "ghost", models.Member{PlayerID: "G", JoinedAt: t0}))

	delete(f.alive, "c-a")
	f.clock.Advance(11 * time.Minute)

	summary := f.scheduler.RunCleanup(ctx)
	assert.Equal(t, 1, summary.StaleConnections)
	assert.Equal(t, 2, summary.PlayersRemoved)
	assert.Equal(t, []string{"r2"}, summary.RoomsAbandoned)
	assert.Empty(t, summary.OrphansSwept)

	room, ok := f.store.Snapshot("r1")
	require.True(t, ok)
	assert.NotContains(t, room.Players, "C")
	assert.False(t, room.Players["A"].IsConnected)
	assert.Equal(t, f.clock.Now(), *room.Players["A"].DisconnectedAt)
	assert.True(t, room.Players["B"].IsConnected)
	assert.Equal(t, "A", room.HostID)
	assert.Equal(t, int64(1), room.Version)
	_, ok = f.store.Snapshot("r2")
	assert.False(t, ok)

	reconciled := f.broadcaster.ofType(messages.MessageTypeStateReconciled)
	require.Len(t, reconciled, 1)
	assert.Equal(t, "r1", reconciled[0].gameID)
	payload := reconciled[0].payload.(messages.StateReconciled)
	assert.Equal(t, int64(1), payload.Version)
	assert.Equal(t, "A", payload.HostID)
	require.Len(t, payload.Players, 2)
	assert.Equal(t, "A", payload.Players[0].PlayerID)
	assert.Equal(t, "B", payload.Players[1].PlayerID)

	durable, err := f.repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "A", durable.OwnerID)
	_, ok = durable.Member("C")
	assert.False(t, ok)
	a, _ := durable.Member("A")
	assert.False(t, a.IsConnected)

	durable, err = f.repo.FindByID(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, rooms.StatusAbandoned, durable.Status)
	assert.Empty(t, durable.Players)

	// ghost has had no live room for longer than the grace period
	f.clock.Advance(time.Hour)
	summary = f.scheduler.RunCleanup(ctx)
	assert.Equal(t, []string{"ghost"}, summary.OrphansSwept)
	durable, err = f.repo.FindByID(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, rooms.StatusAbandoned, durable.Status)
	assert.Empty(t, durable.Players)

	stats := f.scheduler.GetStatus().Stats
	assert.Equal(t, int64(1), stats.StaleConnections)
	assert.Equal(t, int64(1), stats.OrphansSwept)
}

func TestScheduler_RunCleanup_skipsRoomBeingReconciled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.join(t, "r1", "A", "c-a")
	_, err := f.store.MarkDisconnected("r1", "A", "c-a")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	release, ok := f.engine.TryAcquire("r1")
	require.True(t, ok)
	summary := f.scheduler.RunCleanup(ctx)
	assert.Equal(t, 1, summary.SkippedRooms)
	assert.Zero(t, summary.PlayersRemoved)
	room, ok := f.store.Snapshot("r1")
	require.True(t, ok)
	assert.Contains(t, room.Players, "A")

	release()
	summary = f.scheduler.RunCleanup(ctx)
	assert.Equal(t, 1, summary.PlayersRemoved)
	assert.Equal(t, []string{"r1"}, summary.RoomsAbandoned)
}

func TestScheduler_ForceReconciliation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.scheduler.ForceReconciliation(ctx, "nowhere")
	assert.NoError(t, err)
	assert.Nil(t, result)

	f.join(t, "r1", "A", "c-a")
	require.NoError(t, f.repo.UpsertRoom(ctx, "r1", "A", rooms.StatusPlaying))
	require.NoError(t, f.repo.UpsertPlayer(ctx, "r1", models.Member{PlayerID: "A", Username: "A", IsConnected: true, JoinedAt: t0}))

	result, err = f.scheduler.ForceReconciliation(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "A", result.State.HostID)
	assert.Equal(t, rooms.StatusPlaying, result.State.Status)
	assert.Equal(t, int64(1), result.State.Version)
}

func TestScheduler_lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.join(t, "r1", "A", "c-a")
	require.NoError(t, f.repo.UpsertRoom(ctx, "r1", "A", rooms.StatusWaiting))
	require.NoError(t, f.repo.UpsertPlayer(ctx, "r1", models.Member{PlayerID: "A", Username: "A", IsReady: true, IsConnected: true, JoinedAt: t0}))

	assert.False(t, f.scheduler.IsRunning())
	f.scheduler.Start(ctx)
	f.scheduler.Start(ctx)
	assert.True(t, f.scheduler.IsRunning())
	f.clock.BlockUntil(3)

	interval := 5 * time.Second
	cfg, err := f.scheduler.UpdateConfig(ConfigUpdate{ReconciliationInterval: &interval})
	require.NoError(t, err)
	assert.Equal(t, interval, cfg.ReconciliationInterval)
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval)
	assert.True(t, f.scheduler.IsRunning())
	f.clock.BlockUntil(3)

	f.clock.Advance(interval)
	select {
	case e := <-f.broadcaster.notify:
		assert.Equal(t, messages.MessageTypeStateReconciled, e.event)
	case <-time.After(5 * time.Second):
		t.Fatal("reconciliation tick never ran")
	}

	zero := time.Duration(0)
	_, err = f.scheduler.UpdateConfig(ConfigUpdate{MonitoringInterval: &zero})
	assert.Error(t, err)

	f.scheduler.Stop()
	f.scheduler.Stop()
	assert.False(t, f.scheduler.IsRunning())

	status := f.scheduler.GetStatus()
	assert.Equal(t, interval, status.Intervals.Reconciliation)
	assert.Equal(t, map[string]int64{"r1": 1}, status.RoomVersions)
}

func TestScheduler_stopsWithParentContext(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.scheduler.Start(ctx)
	require.True(t, f.scheduler.IsRunning())
	f.clock.BlockUntil(3)

	cancel()
	assert.Eventually(t, func() bool { return !f.scheduler.IsRunning() }, 5*time.Second, 10*time.Millisecond)

	f.scheduler.Start(context.Background())
	assert.True(t, f.scheduler.IsRunning())
	f.clock.BlockUntil(3)
	f.scheduler.Stop()
	assert.False(t, f.scheduler.IsRunning())
}
