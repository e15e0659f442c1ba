package workers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/cardroom/pkg/network"
	"github.com/cbodonnell/cardroom/pkg/state"
	"github.com/stretchr/testify/assert"
)

type recordingDisconnecter struct {
	lock  sync.Mutex
	calls []string
}

func (d *recordingDisconnecter) Disconnect(gameID, playerID, connectionRef string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.calls = append(d.calls, fmt.Sprintf("%s/%s/%s", gameID, playerID, connectionRef))
	if gameID == "gone" {
		return state.ErrRoomNotFound
	}
	return nil
}

func (d *recordingDisconnecter) Calls() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]string(nil), d.calls...)
}

func TestConnectionEventWorker_disconnectsEveryJoinedRoom(t *testing.T) {
	events := make(chan network.ConnectionEvent, 4)
	d := &recordingDisconnecter{}
	w := NewConnectionEventWorker(NewConnectionEventWorkerOptions{ConnectionEventChan: events, Disconnecter: d})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	events <- network.ConnectionEvent{Ref: "c0", Type: network.ConnectionEventTypeConnect}
	// never joined as a player
	events <- network.ConnectionEvent{Ref: "c0", Type: network.ConnectionEventTypeDisconnect}
	events <- network.ConnectionEvent{Ref: "c1", Type: network.ConnectionEventTypeDisconnect, PlayerID: "alice", Rooms: []string{"gone", "r1"}}

	assert.Eventually(t, func() bool { return len(d.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"gone/alice/c1", "r1/alice/c1"}, d.Calls())

	cancel()
	<-done
}
