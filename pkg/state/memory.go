package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/jonboulle/clockwork"
)

// roomEntry pairs a room with the lock that orders its mutations.
type roomEntry struct {
	lock    sync.Mutex
	state   *rooms.RoomState
	removed bool
}

type InMemoryRoomStore struct {
	lock  sync.RWMutex
	rooms map[string]*roomEntry
	clock clockwork.Clock
}

func NewInMemoryRoomStore(clock clockwork.Clock) *InMemoryRoomStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InMemoryRoomStore{
		rooms: make(map[string]*roomEntry),
		clock: clock,
	}
}

func (s *InMemoryRoomStore) entry(gameID string) (*roomEntry, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	e, ok := s.rooms[gameID]
	return e, ok
}

func (s *InMemoryRoomStore) GetOrCreate(gameID string) *rooms.RoomState {
	s.lock.Lock()
	e, ok := s.rooms[gameID]
	if !ok {
		e = &roomEntry{state: rooms.NewRoomState(gameID)}
		s.rooms[gameID] = e
	}
	s.lock.Unlock()

	e.lock.Lock()
	defer e.lock.Unlock()
	return e.state.Copy()
}

func (s *InMemoryRoomStore) Snapshot(gameID string) (*rooms.RoomState, bool) {
	e, ok := s.entry(gameID)
	if !ok {
		return nil, false
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.removed {
		return nil, false
	}
	return e.state.Copy(), true
}

func (s *InMemoryRoomStore) Mutate(gameID string, fn func(room *rooms.RoomState) error) (*rooms.RoomState, error) {
	e, ok := s.entry(gameID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, gameID)
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.removed {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, gameID)
	}

	draft := e.state.Copy()
	if err := fn(draft); err != nil {
		return nil, err
	}
	e.state = draft
	return draft.Copy(), nil
}

func (s *InMemoryRoomStore) ApplyPlayerDelta(gameID, playerID string, delta rooms.PlayerDelta) (*rooms.RoomState, error) {
	now := s.clock.Now()
	return s.Mutate(gameID, func(room *rooms.RoomState) error {
		player, ok := room.Players[playerID]
		if !ok {
			player = &rooms.PlayerState{
				PlayerID: playerID,
				JoinedAt: now,
			}
			room.AddPlayer(player)
		}
		if delta.Username != nil {
			player.Username = *delta.Username
		}
		if delta.IsReady != nil {
			player.IsReady = *delta.IsReady
		}
		if delta.Team != nil {
			if !delta.Team.Valid() {
				return fmt.Errorf("invalid team %q", *delta.Team)
			}
			player.Team = *delta.Team
		}
		if delta.ConnectionRef != nil {
			if *delta.ConnectionRef == "" {
				player.MarkDisconnected(now)
			} else {
				player.MarkConnected(*delta.ConnectionRef, now)
			}
		}
		return nil
	})
}

func (s *InMemoryRoomStore) MarkDisconnected(gameID, playerID, connectionRef string) (bool, error) {
	changed := false
	now := s.clock.Now()
	_, err := s.Mutate(gameID, func(room *rooms.RoomState) error {
		player, ok := room.Players[playerID]
		if !ok {
			return fmt.Errorf("%w: %s in %s", ErrPlayerNotFound, playerID, gameID)
		}
		if player.ConnectionRef != connectionRef {
			// the player reconnected on another socket
			return nil
		}
		if player.IsConnected {
			player.MarkDisconnected(now)
			changed = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

func (s *InMemoryRoomStore) RemovePlayer(gameID, playerID string) (*rooms.RoomState, error) {
	return s.Mutate(gameID, func(room *rooms.RoomState) error {
		if _, ok := room.Players[playerID]; !ok {
			return fmt.Errorf("%w: %s in %s", ErrPlayerNotFound, playerID, gameID)
		}
		room.RemovePlayer(playerID)
		return nil
	})
}

func (s *InMemoryRoomStore) SetHost(gameID, hostID string) (*rooms.RoomState, error) {
	return s.Mutate(gameID, func(room *rooms.RoomState) error {
		if _, ok := room.Players[hostID]; !ok {
			return fmt.Errorf("%w: %s in %s", ErrPlayerNotFound, hostID, gameID)
		}
		room.HostID = hostID
		return nil
	})
}

func (s *InMemoryRoomStore) SetStatus(gameID string, status rooms.Status) (*rooms.RoomState, error) {
	return s.Mutate(gameID, func(room *rooms.RoomState) error {
		room.Status = status
		return nil
	})
}

func (s *InMemoryRoomStore) RemoveIfEmpty(gameID string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	e, ok := s.rooms[gameID]
	if !ok {
		return false
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if len(e.state.Players) > 0 {
		return false
	}
	e.removed = true
	delete(s.rooms, gameID)
	return true
}

func (s *InMemoryRoomStore) Remove(gameID string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	e, ok := s.rooms[gameID]
	if !ok {
		return false
	}
	e.lock.Lock()
	e.removed = true
	e.lock.Unlock()
	delete(s.rooms, gameID)
	return true
}

func (s *InMemoryRoomStore) entries() map[string]*roomEntry {
	s.lock.RLock()
	defer s.lock.RUnlock()
	entries := make(map[string]*roomEntry, len(s.rooms))
	for id, e := range s.rooms {
		entries[id] = e
	}
	return entries
}

func (s *InMemoryRoomStore) RoomIDs() []string {
	s.lock.RLock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.lock.RUnlock()
	sort.Strings(ids)
	return ids
}

func (s *InMemoryRoomStore) ActiveRoomIDs() []string {
	ids := make([]string, 0)
	for id, e := range s.entries() {
		e.lock.Lock()
		if !e.removed && e.state.ConnectedCount() > 0 {
			ids = append(ids, id)
		}
		e.lock.Unlock()
	}
	sort.Strings(ids)
	return ids
}

func (s *InMemoryRoomStore) Versions() map[string]int64 {
	versions := make(map[string]int64)
	for id, e := range s.entries() {
		e.lock.Lock()
		if !e.removed {
			versions[id] = e.state.Version
		}
		e.lock.Unlock()
	}
	return versions
}
