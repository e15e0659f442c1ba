package workers

import (
	"context"
	"errors"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/network"
	"github.com/cbodonnell/cardroom/pkg/state"
)

// Disconnecter marks a player's seat as disconnected when its socket closes.
type Disconnecter interface {
	Disconnect(gameID, playerID, connectionRef string) error
}

type ConnectionEventWorker struct {
	connectionEventChan <-chan network.ConnectionEvent
	disconnecter        Disconnecter
}

type NewConnectionEventWorkerOptions struct {
	ConnectionEventChan <-chan network.ConnectionEvent
	Disconnecter        Disconnecter
}

// NewConnectionEventWorker creates a new ConnectionEventWorker.
// The worker turns closed sockets into disconnected seats in every room
// the connection had joined.
func NewConnectionEventWorker(opts NewConnectionEventWorkerOptions) *ConnectionEventWorker {
	return &ConnectionEventWorker{
		connectionEventChan: opts.ConnectionEventChan,
		disconnecter:        opts.Disconnecter,
	}
}

func (w *ConnectionEventWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.connectionEventChan:
			switch event.Type {
			case network.ConnectionEventTypeConnect:
				log.Trace("Connection %s opened", event.Ref)
			case network.ConnectionEventTypeDisconnect:
				w.handleDisconnect(event)
			default:
				log.Error("Unknown connection event type: %v", event.Type)
			}
		}
	}
}

func (w *ConnectionEventWorker) handleDisconnect(event network.ConnectionEvent) {
	if event.PlayerID == "" {
		return
	}
	for _, gameID := range event.Rooms {
		err := w.disconnecter.Disconnect(gameID, event.PlayerID, event.Ref)
		if err == nil {
			continue
		}
		fields := log.Fields{"game_id": gameID, "player_id": event.PlayerID, "connection": event.Ref}
		if errors.Is(err, state.ErrRoomNotFound) || errors.Is(err, state.ErrPlayerNotFound) {
			// the player left or the room was cleaned up first
			log.WithFields(fields).Debug("Nothing to disconnect: %v", err)
			continue
		}
		log.WithFields(fields).Error("Failed to mark player disconnected: %v", err)
	}
}
