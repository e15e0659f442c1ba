package network

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/metrics"
	"github.com/google/uuid"
)

const (
	// ConnectionEventChannelSize represents the size of the connection event channel
	ConnectionEventChannelSize = 1024
	// SendBufferSize represents the number of outbound messages buffered per connection
	SendBufferSize = 256
)

// Connection is one open client socket.
type Connection struct {
	Ref      string
	Compress bool
	send     chan *messages.Message
	closed   chan struct{}

	lock     sync.RWMutex
	playerID string
	rooms    map[string]struct{}
}

func (c *Connection) PlayerID() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.playerID
}

// Rooms returns the sorted ids of the rooms this connection joined.
func (c *Connection) Rooms() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Connection) inRoom(gameID string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	_, ok := c.rooms[gameID]
	return ok
}

// Outbound returns the queue of messages waiting to be written to the socket.
func (c *Connection) Outbound() <-chan *messages.Message {
	return c.send
}

// Closed is closed once the connection is unregistered.
func (c *Connection) Closed() <-chan struct{} {
	return c.closed
}

// enqueue never blocks: a client too slow to drain its buffer loses messages
// and recovers through state-refresh-required or the next reconciliation.
func (c *Connection) enqueue(msg *messages.Message) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// ConnectionEvent represents an event that happened to a connection
type ConnectionEvent struct {
	Ref      string
	Type     ConnectionEventType
	PlayerID string
	Rooms    []string
}

// ConnectionEventType represents the type of a connection event
type ConnectionEventType int

const (
	ConnectionEventTypeConnect ConnectionEventType = iota
	ConnectionEventTypeDisconnect
)

// ConnectionRegistry tracks open connections and the rooms they joined.
type ConnectionRegistry struct {
	lock            sync.RWMutex
	connections     map[string]*Connection
	byRoom          map[string]map[string]struct{}
	connectionEvent chan ConnectionEvent
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		connections:     make(map[string]*Connection),
		byRoom:          make(map[string]map[string]struct{}),
		connectionEvent: make(chan ConnectionEvent, ConnectionEventChannelSize),
	}
}

// GetConnectionEventChan returns a one-way channel for receiving connection events
func (r *ConnectionRegistry) GetConnectionEventChan() <-chan ConnectionEvent {
	return r.connectionEvent
}

// Register adds a new connection with a fresh reference.
func (r *ConnectionRegistry) Register(compress bool) *Connection {
	c := &Connection{
		Ref:      uuid.NewString(),
		Compress: compress,
		send:     make(chan *messages.Message, SendBufferSize),
		closed:   make(chan struct{}),
		rooms:    make(map[string]struct{}),
	}
	r.lock.Lock()
	r.connections[c.Ref] = c
	count := len(r.connections)
	r.lock.Unlock()

	metrics.Connections.Set(float64(count))
	r.publish(ConnectionEvent{Ref: c.Ref, Type: ConnectionEventTypeConnect})
	return c
}

// Unregister removes a connection and reports the rooms it was bound to.
func (r *ConnectionRegistry) Unregister(ref string) {
	r.lock.Lock()
	c, ok := r.connections[ref]
	if !ok {
		r.lock.Unlock()
		return
	}
	delete(r.connections, ref)
	rooms := c.Rooms()
	for _, gameID := range rooms {
		r.unindex(gameID, ref)
	}
	count := len(r.connections)
	r.lock.Unlock()

	close(c.closed)
	metrics.Connections.Set(float64(count))
	r.publish(ConnectionEvent{Ref: ref, Type: ConnectionEventTypeDisconnect, PlayerID: c.PlayerID(), Rooms: rooms})
}

func (r *ConnectionRegistry) publish(event ConnectionEvent) {
	select {
	case r.connectionEvent <- event:
	default:
		log.Warn("Connection event channel full, dropping event for %s", event.Ref)
	}
}

// IsAlive reports whether ref belongs to an open connection.
func (r *ConnectionRegistry) IsAlive(ref string) bool {
	if ref == "" {
		return false
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.connections[ref]
	return ok
}

func (r *ConnectionRegistry) Get(ref string) (*Connection, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	c, ok := r.connections[ref]
	if !ok {
		return nil, fmt.Errorf("connection %s not found", ref)
	}
	return c, nil
}

// Bind associates the connection with a player. A connection speaks for one player.
func (r *ConnectionRegistry) Bind(ref, playerID string) error {
	c, err := r.Get(ref)
	if err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.playerID != "" && c.playerID != playerID {
		return fmt.Errorf("connection %s is already bound to player %s", ref, c.playerID)
	}
	c.playerID = playerID
	return nil
}

func (r *ConnectionRegistry) JoinRoom(ref, gameID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	c, ok := r.connections[ref]
	if !ok {
		return fmt.Errorf("connection %s not found", ref)
	}
	c.lock.Lock()
	c.rooms[gameID] = struct{}{}
	c.lock.Unlock()

	refs, ok := r.byRoom[gameID]
	if !ok {
		refs = make(map[string]struct{})
		r.byRoom[gameID] = refs
	}
	refs[ref] = struct{}{}
	return nil
}

func (r *ConnectionRegistry) LeaveRoom(ref, gameID string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if c, ok := r.connections[ref]; ok {
		c.lock.Lock()
		delete(c.rooms, gameID)
		c.lock.Unlock()
	}
	r.unindex(gameID, ref)
}

// unindex must be called with the lock held.
func (r *ConnectionRegistry) unindex(gameID, ref string) {
	refs, ok := r.byRoom[gameID]
	if !ok {
		return
	}
	delete(refs, ref)
	if len(refs) == 0 {
		delete(r.byRoom, gameID)
	}
}

// RoomConnections returns the connections that joined gameID.
func (r *ConnectionRegistry) RoomConnections(gameID string) []*Connection {
	r.lock.RLock()
	defer r.lock.RUnlock()
	conns := make([]*Connection, 0, len(r.byRoom[gameID]))
	for ref := range r.byRoom[gameID] {
		conns = append(conns, r.connections[ref])
	}
	return conns
}

// GetConnections returns every open connection.
func (r *ConnectionRegistry) GetConnections() []*Connection {
	r.lock.RLock()
	defer r.lock.RUnlock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, c := range r.connections {
		conns = append(conns, c)
	}
	return conns
}

func (r *ConnectionRegistry) Count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.connections)
}
