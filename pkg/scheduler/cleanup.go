package scheduler

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/metrics"
	"github.com/cbodonnell/cardroom/pkg/repositories"
	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/cbodonnell/cardroom/pkg/state"
)

// CleanupSummary describes one cleanup tick.
type CleanupSummary struct {
	StaleConnections int      `json:"staleConnections"`
	PlayersRemoved   int      `json:"playersRemoved"`
	RoomsAbandoned   []string `json:"roomsAbandoned"`
	OrphansSwept     []string `json:"orphansSwept"`
	SkippedRooms     int      `json:"skippedRooms"`
}

// RunCleanup disconnects players whose connection is gone, removes players
// that stayed disconnected past the stale threshold and abandons empty rooms.
// It then sweeps durable storage for rooms the live store no longer knows.
func (s *Scheduler) RunCleanup(ctx context.Context) CleanupSummary {
	now := s.clock.Now()
	cfg := s.currentConfig()
	summary := CleanupSummary{RoomsAbandoned: []string{}, OrphansSwept: []string{}}

	for _, gameID := range s.store.RoomIDs() {
		if ctx.Err() != nil {
			break
		}
		s.cleanupRoom(ctx, gameID, now, cfg, &summary)
	}
	s.sweepOrphans(ctx, now, cfg, &summary)

	s.lock.Lock()
	s.stats.LastCleanup = now
	s.stats.LastCycleStale = summary.StaleConnections
	s.stats.StaleConnections += int64(summary.StaleConnections)
	s.stats.PlayersRemoved += int64(summary.PlayersRemoved)
	s.stats.RoomsAbandoned += int64(len(summary.RoomsAbandoned))
	s.stats.OrphansSwept += int64(len(summary.OrphansSwept))
	s.lock.Unlock()

	metrics.StaleConnectionsTotal.Add(float64(summary.StaleConnections))
	metrics.PlayersRemovedTotal.Add(float64(summary.PlayersRemoved))

	if summary.StaleConnections > 0 || summary.PlayersRemoved > 0 || len(summary.RoomsAbandoned) > 0 || len(summary.OrphansSwept) > 0 {
		log.Info("Cleanup: %d stale connections, %d players removed, %d rooms abandoned, %d orphans swept",
			summary.StaleConnections, summary.PlayersRemoved, len(summary.RoomsAbandoned), len(summary.OrphansSwept))
	}
	return summary
}

func (s *Scheduler) cleanupRoom(ctx context.Context, gameID string, now time.Time, cfg Config, summary *CleanupSummary) {
	// reconciliation may be about to re-add the players we would remove
	release, ok := s.engine.TryAcquire(gameID)
	if !ok {
		summary.SkippedRooms++
		return
	}
	defer release()

	var stale, removed []string
	hostChanged := false
	room, err := s.store.Mutate(gameID, func(room *rooms.RoomState) error {
		stale, removed, hostChanged = nil, nil, false
		for id, p := range room.Players {
			if p.IsConnected && !s.connections.IsAlive(p.ConnectionRef) {
				p.MarkDisconnected(now)
				stale = append(stale, id)
			} else if !p.IsConnected && p.DisconnectedAt == nil {
				// never connected; start the stale clock now
				p.MarkDisconnected(now)
			}
			if p.DisconnectedFor(now) > cfg.StaleThreshold {
				removed = append(removed, id)
			}
		}
		sort.Strings(stale)
		sort.Strings(removed)
		for _, id := range removed {
			room.RemovePlayer(id)
			if id == room.HostID {
				hostChanged = true
			}
		}
		if hostChanged {
			room.HostID = room.EarliestJoined()
		}
		if len(stale) > 0 || len(removed) > 0 {
			room.Version++
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, state.ErrRoomNotFound) {
			log.WithFields(log.Fields{"game_id": gameID}).Error("Failed to clean up room: %v", err)
		}
		return
	}

	fields := log.Fields{"game_id": gameID}
	for _, id := range stale {
		if err := s.repository.UpdatePlayerConnection(ctx, gameID, id, false); err != nil {
			log.WithFields(fields).Warn("Failed to persist disconnect of %s: %v", id, err)
		}
	}
	for _, id := range removed {
		if err := s.repository.DeletePlayer(ctx, gameID, id); err != nil {
			log.WithFields(fields).Warn("Failed to delete membership of %s: %v", id, err)
		}
	}
	if hostChanged && room.HostID != "" {
		if err := s.repository.UpdateOwner(ctx, gameID, room.HostID); err != nil {
			log.WithFields(fields).Warn("Failed to persist new host %s: %v", room.HostID, err)
		}
	}
	summary.StaleConnections += len(stale)
	summary.PlayersRemoved += len(removed)

	if len(room.Players) == 0 && s.store.RemoveIfEmpty(gameID) {
		s.abandon(ctx, gameID, "cleanup")
		s.engine.Forget(gameID)
		summary.RoomsAbandoned = append(summary.RoomsAbandoned, gameID)
		return
	}
	if len(stale) > 0 || len(removed) > 0 {
		s.broadcastReconciled(room)
	}
}

func (s *Scheduler) sweepOrphans(ctx context.Context, now time.Time, cfg Config, summary *CleanupSummary) {
	candidates, err := s.repository.ListOrphanCandidates(ctx, now.Add(-cfg.OrphanGracePeriod))
	if err != nil {
		log.Error("Failed to list orphaned rooms: %v", err)
		return
	}
	for _, gameID := range candidates {
		if _, ok := s.store.Snapshot(gameID); ok {
			continue
		}
		s.abandon(ctx, gameID, "orphan_sweep")
		summary.OrphansSwept = append(summary.OrphansSwept, gameID)
	}
}

func (s *Scheduler) abandon(ctx context.Context, gameID string, source string) {
	fields := log.Fields{"game_id": gameID, "source": source}
	if _, err := s.repository.DeleteMemberships(ctx, gameID); err != nil {
		log.WithFields(fields).Warn("Failed to delete memberships: %v", err)
	}
	if err := s.repository.UpdateStatus(ctx, gameID, rooms.StatusAbandoned); err != nil && !repositories.IsNotFound(err) {
		log.WithFields(fields).Warn("Failed to mark room abandoned: %v", err)
	}
	metrics.RoomsAbandonedTotal.WithLabelValues(source).Inc()
	log.WithFields(fields).Debug("Room abandoned")
}
