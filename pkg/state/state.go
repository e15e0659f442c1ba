package state

import (
	"errors"

	"github.com/cbodonnell/cardroom/pkg/rooms"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found")
)

// RoomStore is the live, in-process mirror of room membership.
// Implementations must be thread-safe, serialize mutations per room,
// and never perform network or disk I/O.
// All returned rooms are copies.
type RoomStore interface {
	// GetOrCreate returns the room, creating an empty waiting room if needed.
	GetOrCreate(gameID string) *rooms.RoomState
	// Snapshot returns the room if it exists.
	Snapshot(gameID string) (*rooms.RoomState, bool)
	// ApplyPlayerDelta updates a player, creating them on first delta.
	ApplyPlayerDelta(gameID, playerID string, delta rooms.PlayerDelta) (*rooms.RoomState, error)
	// MarkDisconnected disconnects a player if their recorded connection
	// reference still matches connectionRef.
	MarkDisconnected(gameID, playerID, connectionRef string) (bool, error)
	// Mutate runs fn against the room under the room's mutation lock.
	// fn works on a draft which replaces the room only if fn returns nil.
	// fn must not call back into the store.
	Mutate(gameID string, fn func(room *rooms.RoomState) error) (*rooms.RoomState, error)
	// RemovePlayer drops a player from the room and from its team.
	RemovePlayer(gameID, playerID string) (*rooms.RoomState, error)
	// SetHost changes the room's host. The host must be a member.
	SetHost(gameID, hostID string) (*rooms.RoomState, error)
	SetStatus(gameID string, status rooms.Status) (*rooms.RoomState, error)
	// Remove deletes the room.
	Remove(gameID string) bool
	// RemoveIfEmpty deletes the room only if it has no players.
	RemoveIfEmpty(gameID string) bool
	// RoomIDs returns the ids of all rooms, sorted.
	RoomIDs() []string
	// ActiveRoomIDs returns the ids of rooms with at least one connected player, sorted.
	ActiveRoomIDs() []string
	// Versions returns the current version of every room.
	Versions() map[string]int64
}
