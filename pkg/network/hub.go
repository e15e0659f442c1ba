package network

import (
	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/messages"
)

// Hub is the fire-and-forget broadcast primitive over the registry.
type Hub struct {
	registry *ConnectionRegistry
}

func NewHub(registry *ConnectionRegistry) *Hub {
	return &Hub{registry: registry}
}

// Emit sends event to every connection in the room.
func (h *Hub) Emit(gameID string, event string, payload interface{}) {
	msg, err := messages.NewMessage(event, payload)
	if err != nil {
		log.Error("Failed to build %s for room %s: %v", event, gameID, err)
		return
	}
	for _, c := range h.registry.RoomConnections(gameID) {
		if !c.enqueue(msg) {
			log.WithFields(log.Fields{"game_id": gameID, "connection": c.Ref}).Warn("Dropped %s for a slow connection", event)
		}
	}
}

// EmitAll sends event to every open connection.
func (h *Hub) EmitAll(event string, payload interface{}) {
	msg, err := messages.NewMessage(event, payload)
	if err != nil {
		log.Error("Failed to build %s: %v", event, err)
		return
	}
	for _, c := range h.registry.GetConnections() {
		if !c.enqueue(msg) {
			log.WithFields(log.Fields{"connection": c.Ref}).Warn("Dropped %s for a slow connection", event)
		}
	}
}

// Send sends event to a single connection.
func (h *Hub) Send(ref string, event string, payload interface{}) error {
	c, err := h.registry.Get(ref)
	if err != nil {
		return err
	}
	msg, err := messages.NewMessage(event, payload)
	if err != nil {
		return err
	}
	if !c.enqueue(msg) {
		log.WithFields(log.Fields{"connection": ref}).Warn("Dropped %s for a slow connection", event)
	}
	return nil
}
