package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cbodonnell/cardroom/pkg/lobby"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/network"
	"github.com/cbodonnell/cardroom/pkg/queue"
	"github.com/cbodonnell/cardroom/pkg/reliability"
	"github.com/cbodonnell/cardroom/pkg/repositories"
	"github.com/cbodonnell/cardroom/pkg/state"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, ctx context.Context) (*network.NetworkManager, string) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	registry := network.NewConnectionRegistry()
	hub := network.NewHub(registry)
	rel := reliability.NewService(reliability.NewServiceOptions{Emitter: hub, Clock: clock})
	t.Cleanup(rel.Stop)
	n := network.NewNetworkManager(network.NewNetworkManagerOptions{
		Registry:    registry,
		Hub:         hub,
		Reliability: rel,
		Lobby: lobby.NewService(lobby.NewServiceOptions{
			Store:     state.NewInMemoryRoomStore(clock),
			Changes:   queue.NewInMemoryQueue[repositories.Change](64),
			Publisher: rel,
			Clock:     clock,
		}),
	})
	srv := httptest.NewServer(n.WSServer.Handler(ctx, n.HandleMessage))
	t.Cleanup(srv.Close)
	return n, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func next(t *testing.T, q queue.Queue[*messages.Message]) *messages.Message {
	t.Helper()
	var msg *messages.Message
	require.Eventually(t, func() bool {
		m, ok := q.Dequeue()
		msg = m
		return ok
	}, 5*time.Second, 5*time.Millisecond)
	return msg
}

func TestWSClient_autoConfirmsTrackedEvents(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "text", true: "zstd"}[compress], func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			n, addr := startServer(t, ctx)

			q := queue.NewInMemoryQueue[*messages.Message](32)
			c := NewWSClient(NewWSClientOptions{ServerAddr: addr, Compress: compress, AutoConfirm: true, MessageQueue: q})
			require.NoError(t, c.Connect(ctx))
			defer c.Close()

			done := make(chan error, 1)
			go func() { done <- c.HandleMessages(ctx) }()

			require.NoError(t, c.JoinRoom(ctx, "r1", "alice", "Alice"))
			assert.Equal(t, messages.MessageTypePlayerJoined, next(t, q).Type)
			assert.Equal(t, messages.MessageTypeStateReconciled, next(t, q).Type)

			require.NoError(t, c.ToggleReady(ctx, "r1"))
			ready := next(t, q)
			require.Equal(t, messages.MessageTypeReadyChanged, ready.Type)
			_, _, tracked := UnwrapEnvelope(ready)
			assert.True(t, tracked)

			assert.Eventually(t, func() bool {
				return n.Reliability.Stats().PendingEvents == 0
			}, 5*time.Second, 5*time.Millisecond)
			assert.Equal(t, int64(1), n.Reliability.Stats().EventStats[messages.MessageTypeReadyChanged].Confirmed)

			cancel()
			<-done
		})
	}
}

func TestUnwrapEnvelope(t *testing.T) {
	plain, err := messages.NewMessage(messages.MessageTypePlayerLeft, messages.PlayerLeft{GameID: "r1", PlayerID: "a"})
	require.NoError(t, err)
	_, _, ok := UnwrapEnvelope(plain)
	assert.False(t, ok)

	wrapped, err := messages.NewMessage(messages.MessageTypeTeamsFormed, messages.Envelope{
		EventID: "e1",
		Attempt: 2,
		Data:    messages.TeamsFormed{GameID: "r1"},
	})
	require.NoError(t, err)
	id, data, ok := UnwrapEnvelope(wrapped)
	require.True(t, ok)
	assert.Equal(t, "e1", id)
	assert.Contains(t, string(data), `"gameId":"r1"`)
}

func TestWSClient_sendBeforeConnect(t *testing.T) {
	c := NewWSClient(NewWSClientOptions{MessageQueue: queue.NewInMemoryQueue[*messages.Message](1)})
	assert.Error(t, c.StartGame(context.Background(), "r1"))
	assert.NoError(t, c.Close())
}
