package messages

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cbodonnell/cardroom/pkg/rooms"
)

const (
	// MessageBufferSize represents the maximum size of an inbound message
	MessageBufferSize = 32 * 1024
)

// Inbound message types
const (
	MessageTypeJoinRoom              = "join-room"
	MessageTypeLeaveRoom             = "leave-room"
	MessageTypeToggleReady           = "toggle-ready"
	MessageTypeAssignTeam            = "assign-team"
	MessageTypeStartGame             = "start-game"
	MessageTypeEventConfirmation     = "event-confirmation"
	MessageTypeRequestFallback       = "request-fallback"
	MessageTypeConnectionHealthCheck = "connection-health-check"
)

// Outbound message types
const (
	MessageTypeStateReconciled          = "state-reconciled"
	MessageTypeStateRefreshRequired     = "state-refresh-required"
	MessageTypeConnectionHealthResponse = "connection-health-response"
	MessageTypeReconciliationAlerts     = "reconciliation-alerts"
	MessageTypePlayerJoined             = "player-joined"
	MessageTypePlayerLeft               = "player-left"
	MessageTypeReadyChanged             = "ready-changed"
	MessageTypeTeamsFormed              = "teams-formed"
	MessageTypeGameStarting             = "game-starting"
	MessageTypeError                    = "error"
)

// Message represents a generic message for serialization/deserialization
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage builds a message with payload encoded as JSON.
func NewMessage(messageType string, payload interface{}) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", messageType, err)
	}
	return &Message{Type: messageType, Payload: b}, nil
}

// Envelope wraps a critical event so the client can confirm it by id.
type Envelope struct {
	EventID   string      `json:"eventId"`
	Attempt   int         `json:"attempt"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type StateReconciled struct {
	GameID    string               `json:"gameId"`
	Version   int64                `json:"version"`
	Players   []*rooms.PlayerState `json:"players"`
	HostID    string               `json:"hostId"`
	Status    rooms.Status         `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
}

type StateRefreshRequired struct {
	GameID    string    `json:"gameId"`
	Reason    string    `json:"reason"`
	EventType string    `json:"eventType,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ConnectionHealthResponse struct {
	Status             string    `json:"status"`
	Timestamp          time.Time `json:"timestamp"`
	ReliabilityEnabled bool      `json:"reliabilityEnabled"`
}

type Alert struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

type AlertStats struct {
	Attempts          int64   `json:"attempts"`
	SuccessRate       float64 `json:"successRate"`
	FailureRate       float64 `json:"failureRate"`
	InconsistencyRate float64 `json:"inconsistencyRate"`
	StaleConnections  int     `json:"staleConnections"`
}

type ReconciliationAlerts struct {
	Alerts    []Alert    `json:"alerts"`
	Stats     AlertStats `json:"stats"`
	Timestamp time.Time  `json:"timestamp"`
}

type PlayerJoined struct {
	GameID string             `json:"gameId"`
	Player *rooms.PlayerState `json:"player"`
	HostID string             `json:"hostId"`
}

type PlayerLeft struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	HostID   string `json:"hostId"`
}

type ReadyChanged struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	IsReady  bool   `json:"isReady"`
}

type Teams struct {
	A []string `json:"A"`
	B []string `json:"B"`
}

type TeamsFormed struct {
	GameID string `json:"gameId"`
	Teams  Teams  `json:"teams"`
}

type GameStarting struct {
	GameID    string    `json:"gameId"`
	Teams     Teams     `json:"teams"`
	HostID    string    `json:"hostId"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// Inbound payloads

type JoinRoom struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
}

type LeaveRoom struct {
	GameID string `json:"gameId"`
}

type ToggleReady struct {
	GameID string `json:"gameId"`
}

type AssignTeam struct {
	GameID   string     `json:"gameId"`
	PlayerID string     `json:"playerId"`
	Team     rooms.Team `json:"team"`
}

type StartGame struct {
	GameID string `json:"gameId"`
}

type EventConfirmation struct {
	EventID string `json:"eventId"`
}

type RequestFallback struct {
	EventType string `json:"eventType"`
	GameID    string `json:"gameId"`
}
