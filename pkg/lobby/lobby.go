package lobby

import (
	"errors"
	"fmt"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/metrics"
	"github.com/cbodonnell/cardroom/pkg/queue"
	"github.com/cbodonnell/cardroom/pkg/repositories"
	"github.com/cbodonnell/cardroom/pkg/repositories/models"
	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/cbodonnell/cardroom/pkg/state"
	"github.com/jonboulle/clockwork"
)

const DefaultMaxPlayers = 4

var (
	ErrNotHost          = errors.New("only the host can do that")
	ErrNotInRoom        = errors.New("player is not in the room")
	ErrRoomFull         = errors.New("room is full")
	ErrGameInProgress   = errors.New("game already started")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrPlayersNotReady  = errors.New("every player must be connected and ready")
	ErrTeamsUnbalanced  = errors.New("teams must be non-empty and the same size")
	ErrInvalidTeam      = errors.New("invalid team")
)

// Publisher emits room events, confirming the critical ones.
type Publisher interface {
	EmitReliable(gameID string, eventType string, payload interface{}) bool
}

// Service applies player actions to the live store, queues the matching
// durable writes and announces the result to the room.
type Service struct {
	store      state.RoomStore
	changes    queue.Queue[repositories.Change]
	publisher  Publisher
	clock      clockwork.Clock
	maxPlayers int
}

type NewServiceOptions struct {
	Store      state.RoomStore
	Changes    queue.Queue[repositories.Change]
	Publisher  Publisher
	Clock      clockwork.Clock
	MaxPlayers int
}

func NewService(opts NewServiceOptions) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = DefaultMaxPlayers
	}
	return &Service{
		store:      opts.Store,
		changes:    opts.Changes,
		publisher:  opts.Publisher,
		clock:      opts.Clock,
		maxPlayers: opts.MaxPlayers,
	}
}

// Join adds the player to the room on connectionRef, or rebinds a returning player.
// The first player in an empty room becomes host.
func (s *Service) Join(gameID, playerID, username, connectionRef string) (*rooms.RoomState, error) {
	room, err := s.join(gameID, playerID, username, connectionRef)
	if errors.Is(err, state.ErrRoomNotFound) {
		// cleanup dropped the empty room between create and join
		room, err = s.join(gameID, playerID, username, connectionRef)
	}
	if err != nil {
		return nil, err
	}

	player := room.Players[playerID]
	s.enqueue(repositories.Change{Op: repositories.ChangeUpsertRoom, GameID: gameID, OwnerID: room.HostID, Status: room.Status})
	s.enqueue(repositories.Change{Op: repositories.ChangeUpsertPlayer, GameID: gameID, Member: memberOf(player)})
	s.publisher.EmitReliable(gameID, messages.MessageTypePlayerJoined, messages.PlayerJoined{
		GameID: gameID,
		Player: player,
		HostID: room.HostID,
	})
	log.WithFields(log.Fields{"game_id": gameID, "player_id": playerID}).Info("Player joined")
	return room, nil
}

func (s *Service) join(gameID, playerID, username, connectionRef string) (*rooms.RoomState, error) {
	now := s.clock.Now()
	s.store.GetOrCreate(gameID)
	return s.store.Mutate(gameID, func(room *rooms.RoomState) error {
		player, ok := room.Players[playerID]
		if !ok {
			if room.Status != rooms.StatusWaiting {
				return ErrGameInProgress
			}
			if len(room.Players) >= s.maxPlayers {
				return ErrRoomFull
			}
			player = &rooms.PlayerState{PlayerID: playerID, JoinedAt: now}
			room.AddPlayer(player)
		}
		if username != "" {
			player.Username = username
		}
		player.MarkConnected(connectionRef, now)
		if _, ok := room.Players[room.HostID]; !ok {
			room.HostID = playerID
		}
		return nil
	})
}

// Leave removes the player. When the host leaves, the longest-standing
// player takes over; a room left empty is abandoned.
func (s *Service) Leave(gameID, playerID string) (*rooms.RoomState, error) {
	hostChanged := false
	room, err := s.store.Mutate(gameID, func(room *rooms.RoomState) error {
		if _, ok := room.Players[playerID]; !ok {
			return fmt.Errorf("%w: %s", ErrNotInRoom, playerID)
		}
		room.RemovePlayer(playerID)
		if room.HostID == playerID {
			room.HostID = room.EarliestJoined()
			hostChanged = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.enqueue(repositories.Change{Op: repositories.ChangeDeletePlayer, GameID: gameID, PlayerID: playerID})
	if hostChanged && room.HostID != "" {
		s.enqueue(repositories.Change{Op: repositories.ChangeUpdateOwner, GameID: gameID, OwnerID: room.HostID})
	}
	if len(room.Players) == 0 && s.store.RemoveIfEmpty(gameID) {
		s.enqueue(repositories.Change{Op: repositories.ChangeUpdateStatus, GameID: gameID, Status: rooms.StatusAbandoned})
		room.Status = rooms.StatusAbandoned
	}
	s.publisher.EmitReliable(gameID, messages.MessageTypePlayerLeft, messages.PlayerLeft{
		GameID:   gameID,
		PlayerID: playerID,
		HostID:   room.HostID,
	})
	log.WithFields(log.Fields{"game_id": gameID, "player_id": playerID}).Info("Player left")
	return room, nil
}

// Disconnect marks the player disconnected if connectionRef is still theirs.
// The player keeps their seat until cleanup decides they are stale.
func (s *Service) Disconnect(gameID, playerID, connectionRef string) error {
	changed, err := s.store.MarkDisconnected(gameID, playerID, connectionRef)
	if err != nil {
		return err
	}
	if changed {
		s.enqueue(repositories.Change{Op: repositories.ChangeUpdateConnection, GameID: gameID, PlayerID: playerID, IsConnected: false})
		log.WithFields(log.Fields{"game_id": gameID, "player_id": playerID}).Debug("Player disconnected")
	}
	return nil
}

// ToggleReady flips the player's ready flag and returns the new value.
func (s *Service) ToggleReady(gameID, playerID string) (bool, error) {
	var ready bool
	room, err := s.store.Mutate(gameID, func(room *rooms.RoomState) error {
		if room.Status != rooms.StatusWaiting {
			return ErrGameInProgress
		}
		player, ok := room.Players[playerID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotInRoom, playerID)
		}
		player.IsReady = !player.IsReady
		ready = player.IsReady
		return nil
	})
	if err != nil {
		return false, err
	}

	s.enqueue(repositories.Change{Op: repositories.ChangeUpsertPlayer, GameID: gameID, Member: memberOf(room.Players[playerID])})
	s.publisher.EmitReliable(gameID, messages.MessageTypeReadyChanged, messages.ReadyChanged{
		GameID:   gameID,
		PlayerID: playerID,
		IsReady:  ready,
	})
	return ready, nil
}

// AssignTeam puts playerID on team. Players may pick their own team; only
// the host may move someone else.
func (s *Service) AssignTeam(gameID, actorID, playerID string, team rooms.Team) (*rooms.RoomState, error) {
	if !team.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTeam, team)
	}
	room, err := s.store.Mutate(gameID, func(room *rooms.RoomState) error {
		if room.Status != rooms.StatusWaiting {
			return ErrGameInProgress
		}
		if actorID != playerID && actorID != room.HostID {
			return ErrNotHost
		}
		player, ok := room.Players[playerID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotInRoom, playerID)
		}
		player.Team = team
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.enqueue(repositories.Change{Op: repositories.ChangeUpsertPlayer, GameID: gameID, Member: memberOf(room.Players[playerID])})
	s.publisher.EmitReliable(gameID, messages.MessageTypeTeamsFormed, messages.TeamsFormed{
		GameID: gameID,
		Teams:  teamsOf(room),
	})
	return room, nil
}

// StartGame moves a waiting room into play.
func (s *Service) StartGame(gameID, actorID string) (*rooms.RoomState, error) {
	room, err := s.store.Mutate(gameID, func(room *rooms.RoomState) error {
		if err := CanStart(room, actorID); err != nil {
			return err
		}
		room.Status = rooms.StatusPlaying
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.enqueue(repositories.Change{Op: repositories.ChangeUpdateStatus, GameID: gameID, Status: rooms.StatusPlaying})
	s.publisher.EmitReliable(gameID, messages.MessageTypeGameStarting, messages.GameStarting{
		GameID:    gameID,
		Teams:     teamsOf(room),
		HostID:    room.HostID,
		Timestamp: s.clock.Now(),
	})
	log.WithFields(log.Fields{"game_id": gameID}).Info("Game starting with %d players", len(room.Players))
	return room, nil
}

// CanStart reports why room can't be started by actorID, or nil if it can.
func CanStart(room *rooms.RoomState, actorID string) error {
	if room.Status != rooms.StatusWaiting {
		return ErrGameInProgress
	}
	if actorID != room.HostID {
		return ErrNotHost
	}
	if len(room.Players) < 2 {
		return ErrNotEnoughPlayers
	}
	for _, p := range room.Players {
		if !p.IsConnected || !p.IsReady {
			return ErrPlayersNotReady
		}
	}
	a, b := room.TeamMembers(rooms.TeamA), room.TeamMembers(rooms.TeamB)
	if len(a) == 0 || len(a) != len(b) || len(a)+len(b) != len(room.Players) {
		return ErrTeamsUnbalanced
	}
	return nil
}

func (s *Service) enqueue(change repositories.Change) {
	if err := s.changes.Enqueue(change); err != nil {
		metrics.PersistQueueDropped.Inc()
		log.WithFields(log.Fields{"game_id": change.GameID}).Warn("Dropped %s: %v", change.Op, err)
	}
}

func memberOf(p *rooms.PlayerState) models.Member {
	return models.Member{
		PlayerID:    p.PlayerID,
		Username:    p.Username,
		IsReady:     p.IsReady,
		Team:        p.Team,
		IsConnected: p.IsConnected,
		JoinedAt:    p.JoinedAt,
	}
}

func teamsOf(room *rooms.RoomState) messages.Teams {
	return messages.Teams{
		A: room.TeamMembers(rooms.TeamA),
		B: room.TeamMembers(rooms.TeamB),
	}
}
