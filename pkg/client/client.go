package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/network"
	"github.com/cbodonnell/cardroom/pkg/queue"
	"github.com/cbodonnell/cardroom/pkg/rooms"
	"nhooyr.io/websocket"
)

// WSClient represents a WebSocket client.
type WSClient struct {
	serverAddr   string
	compress     bool
	autoConfirm  bool
	messageQueue queue.Queue[*messages.Message]
	conn         *websocket.Conn
}

type NewWSClientOptions struct {
	// ServerAddr is the ws:// or wss:// url of the /ws endpoint.
	ServerAddr string
	// Compress asks the server for zstd binary frames.
	Compress bool
	// AutoConfirm answers every tracked event with an event-confirmation.
	AutoConfirm  bool
	MessageQueue queue.Queue[*messages.Message]
}

// NewWSClient creates a new WebSocket client.
func NewWSClient(opts NewWSClientOptions) *WSClient {
	return &WSClient{
		serverAddr:   opts.ServerAddr,
		compress:     opts.Compress,
		autoConfirm:  opts.AutoConfirm,
		messageQueue: opts.MessageQueue,
	}
}

// Connect establishes a connection to the WebSocket server.
func (c *WSClient) Connect(ctx context.Context) error {
	addr := c.serverAddr
	if c.compress {
		sep := "?"
		if strings.Contains(addr, "?") {
			sep = "&"
		}
		addr += sep + "compress=zstd"
	}
	log.Info("Connecting to WebSocket server at %s", addr)
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %v", err)
	}
	conn.SetReadLimit(messages.MessageBufferSize)
	c.conn = conn
	return nil
}

// HandleMessages reads from the server until ctx is done or the
// connection closes, queueing every message it receives.
func (c *WSClient) HandleMessages(ctx context.Context) error {
	for {
		msg, err := network.ReadMessageFromWS(ctx, c.conn)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				log.Trace("Connection closed")
				return nil
			}
			return err
		}
		log.Trace("Received message from WebSocket server of type %s", msg.Type)

		if c.autoConfirm {
			if eventID, _, ok := UnwrapEnvelope(msg); ok {
				if err := c.Send(ctx, messages.MessageTypeEventConfirmation, messages.EventConfirmation{EventID: eventID}); err != nil {
					log.Warn("Failed to confirm event %s: %v", eventID, err)
				}
			}
		}
		if err := c.messageQueue.Enqueue(msg); err != nil {
			log.Warn("Dropped %s: %v", msg.Type, err)
		}
	}
}

// UnwrapEnvelope returns the event id and inner payload of a tracked event.
// ok is false for messages sent without delivery tracking.
func UnwrapEnvelope(msg *messages.Message) (eventID string, data json.RawMessage, ok bool) {
	var envelope struct {
		EventID string          `json:"eventId"`
		Attempt int             `json:"attempt"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		return "", nil, false
	}
	if envelope.EventID == "" || envelope.Attempt < 1 {
		return "", nil, false
	}
	return envelope.EventID, envelope.Data, true
}

// Send sends a message to the WebSocket server.
func (c *WSClient) Send(ctx context.Context, msgType string, payload interface{}) error {
	if c.conn == nil {
		return errors.New("not connected")
	}
	msg, err := messages.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return network.WriteMessageToWS(ctx, c.conn, msg, c.compress)
}

func (c *WSClient) JoinRoom(ctx context.Context, gameID, playerID, username string) error {
	return c.Send(ctx, messages.MessageTypeJoinRoom, messages.JoinRoom{GameID: gameID, PlayerID: playerID, Username: username})
}

func (c *WSClient) LeaveRoom(ctx context.Context, gameID string) error {
	return c.Send(ctx, messages.MessageTypeLeaveRoom, messages.LeaveRoom{GameID: gameID})
}

func (c *WSClient) ToggleReady(ctx context.Context, gameID string) error {
	return c.Send(ctx, messages.MessageTypeToggleReady, messages.ToggleReady{GameID: gameID})
}

func (c *WSClient) AssignTeam(ctx context.Context, gameID, playerID string, team rooms.Team) error {
	return c.Send(ctx, messages.MessageTypeAssignTeam, messages.AssignTeam{GameID: gameID, PlayerID: playerID, Team: team})
}

func (c *WSClient) StartGame(ctx context.Context, gameID string) error {
	return c.Send(ctx, messages.MessageTypeStartGame, messages.StartGame{GameID: gameID})
}

func (c *WSClient) CheckHealth(ctx context.Context) error {
	return c.Send(ctx, messages.MessageTypeConnectionHealthCheck, struct{}{})
}

func (c *WSClient) RequestFallback(ctx context.Context, gameID, eventType string) error {
	return c.Send(ctx, messages.MessageTypeRequestFallback, messages.RequestFallback{GameID: gameID, EventType: eventType})
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	if c.conn == nil {
		log.Warn("WebSocket connection is already closed")
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.conn = nil
	return err
}
