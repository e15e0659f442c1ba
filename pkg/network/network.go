package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/cbodonnell/cardroom/pkg/lobby"
	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/reliability"
	"github.com/cbodonnell/cardroom/pkg/rooms"
)

var (
	ErrNotJoined     = errors.New("connection has not joined the room")
	ErrMissingGameID = errors.New("gameId is required")
)

type NetworkManager struct {
	Registry    *ConnectionRegistry
	Hub         *Hub
	Lobby       *lobby.Service
	Reliability *reliability.Service
	WSServer    *WSServer
}

type NewNetworkManagerOptions struct {
	Registry       *ConnectionRegistry
	Hub            *Hub
	Lobby          *lobby.Service
	Reliability    *reliability.Service
	WSPort         int
	WSServerTLS    *TLSConfig
	OriginPatterns []string
}

func NewNetworkManager(options NewNetworkManagerOptions) *NetworkManager {
	return &NetworkManager{
		Registry:    options.Registry,
		Hub:         options.Hub,
		Lobby:       options.Lobby,
		Reliability: options.Reliability,
		WSServer: NewWSServer(NewWSServerOptions{
			Port:           options.WSPort,
			TLS:            options.WSServerTLS,
			Registry:       options.Registry,
			OriginPatterns: options.OriginPatterns,
		}),
	}
}

func (n *NetworkManager) Start(ctx context.Context) {
	go n.WSServer.Start(ctx, n.HandleMessage)
}

// HandleMessage dispatches one inbound message from conn.
// Failures are reported back to the sender as an error message.
func (n *NetworkManager) HandleMessage(ctx context.Context, conn *Connection, message *messages.Message) {
	var err error
	switch message.Type {
	case messages.MessageTypeJoinRoom:
		err = n.handleJoinRoom(conn, message)
	case messages.MessageTypeLeaveRoom:
		err = n.handleLeaveRoom(conn, message)
	case messages.MessageTypeToggleReady:
		err = n.handleToggleReady(conn, message)
	case messages.MessageTypeAssignTeam:
		err = n.handleAssignTeam(conn, message)
	case messages.MessageTypeStartGame:
		err = n.handleStartGame(conn, message)
	case messages.MessageTypeEventConfirmation:
		err = n.handleEventConfirmation(conn, message)
	case messages.MessageTypeRequestFallback:
		err = n.handleRequestFallback(conn, message)
	case messages.MessageTypeConnectionHealthCheck:
		err = n.Hub.Send(conn.Ref, messages.MessageTypeConnectionHealthResponse, n.Reliability.HealthCheck())
	default:
		err = fmt.Errorf("unhandled message type: %s", message.Type)
	}

	if err != nil {
		log.WithFields(log.Fields{"connection": conn.Ref, "player_id": conn.PlayerID()}).Debug("Rejected %s: %v", message.Type, err)
		n.sendError(conn, err)
	}
}

func (n *NetworkManager) handleJoinRoom(conn *Connection, message *messages.Message) error {
	var p messages.JoinRoom
	if err := messages.DecodePayload(message, &p); err != nil {
		return err
	}
	if p.GameID == "" {
		return ErrMissingGameID
	}
	if p.PlayerID == "" {
		return errors.New("playerId is required")
	}
	if err := n.Registry.Bind(conn.Ref, p.PlayerID); err != nil {
		return err
	}
	// join the broadcast group first so the joiner sees its own player-joined
	if err := n.Registry.JoinRoom(conn.Ref, p.GameID); err != nil {
		return err
	}

	room, err := n.Lobby.Join(p.GameID, p.PlayerID, p.Username, conn.Ref)
	if err != nil {
		n.Registry.LeaveRoom(conn.Ref, p.GameID)
		return err
	}
	return n.Hub.Send(conn.Ref, messages.MessageTypeStateReconciled, snapshotOf(room))
}

func (n *NetworkManager) handleLeaveRoom(conn *Connection, message *messages.Message) error {
	var p messages.LeaveRoom
	playerID, err := n.member(conn, message, &p, func() string { return p.GameID })
	if err != nil {
		return err
	}
	if _, err := n.Lobby.Leave(p.GameID, playerID); err != nil {
		return err
	}
	n.Registry.LeaveRoom(conn.Ref, p.GameID)
	return nil
}

func (n *NetworkManager) handleToggleReady(conn *Connection, message *messages.Message) error {
	var p messages.ToggleReady
	playerID, err := n.member(conn, message, &p, func() string { return p.GameID })
	if err != nil {
		return err
	}
	_, err = n.Lobby.ToggleReady(p.GameID, playerID)
	return err
}

func (n *NetworkManager) handleAssignTeam(conn *Connection, message *messages.Message) error {
	var p messages.AssignTeam
	actorID, err := n.member(conn, message, &p, func() string { return p.GameID })
	if err != nil {
		return err
	}
	target := p.PlayerID
	if target == "" {
		target = actorID
	}
	_, err = n.Lobby.AssignTeam(p.GameID, actorID, target, p.Team)
	return err
}

func (n *NetworkManager) handleStartGame(conn *Connection, message *messages.Message) error {
	var p messages.StartGame
	actorID, err := n.member(conn, message, &p, func() string { return p.GameID })
	if err != nil {
		return err
	}
	_, err = n.Lobby.StartGame(p.GameID, actorID)
	return err
}

func (n *NetworkManager) handleEventConfirmation(conn *Connection, message *messages.Message) error {
	var p messages.EventConfirmation
	if err := messages.DecodePayload(message, &p); err != nil {
		return err
	}
	// only members of the event's room may confirm it
	if !n.Reliability.ConfirmFor(p.EventID, conn.inRoom) {
		// late or duplicate confirmations are expected after a retry
		log.Trace("Ignoring confirmation of event %s from %s", p.EventID, conn.Ref)
	}
	return nil
}

func (n *NetworkManager) handleRequestFallback(conn *Connection, message *messages.Message) error {
	var p messages.RequestFallback
	if err := messages.DecodePayload(message, &p); err != nil {
		return err
	}
	refresh := n.Reliability.RequestFallback(p.EventType, p.GameID)
	return n.Hub.Send(conn.Ref, messages.MessageTypeStateRefreshRequired, refresh)
}

// member decodes the payload into v and checks that conn has joined the
// room named by gameID, returning the bound player id.
func (n *NetworkManager) member(conn *Connection, message *messages.Message, v interface{}, gameID func() string) (string, error) {
	if err := messages.DecodePayload(message, v); err != nil {
		return "", err
	}
	id := gameID()
	if id == "" {
		return "", ErrMissingGameID
	}
	playerID := conn.PlayerID()
	if playerID == "" || !conn.inRoom(id) {
		return "", fmt.Errorf("%w: %s", ErrNotJoined, id)
	}
	return playerID, nil
}

func (n *NetworkManager) sendError(conn *Connection, err error) {
	if sendErr := n.Hub.Send(conn.Ref, messages.MessageTypeError, messages.ErrorMessage{Message: err.Error()}); sendErr != nil {
		log.Debug("Failed to send error to %s: %v", conn.Ref, sendErr)
	}
}

func snapshotOf(room *rooms.RoomState) messages.StateReconciled {
	return messages.StateReconciled{
		GameID:    room.GameID,
		Version:   room.Version,
		Players:   room.OrderedPlayers(),
		HostID:    room.HostID,
		Status:    room.Status,
		Timestamp: room.LastReconciled,
	}
}
