package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/metrics"
	"github.com/cbodonnell/cardroom/pkg/reconcile"
	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/cbodonnell/cardroom/pkg/state"
	"golang.org/x/sync/errgroup"
)

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeSkipped
)

type roomPass struct {
	outcome         outcome
	inconsistencies int
	bumped          bool
}

// ReconciliationSummary describes one reconciliation tick.
type ReconciliationSummary struct {
	Rooms           int `json:"rooms"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
	Inconsistencies int `json:"inconsistencies"`
	VersionBumps    int `json:"versionBumps"`
}

// RunReconciliation reconciles every room with a connected player.
// Rooms are processed concurrently and a failing room never stops the others.
func (s *Scheduler) RunReconciliation(ctx context.Context) ReconciliationSummary {
	start := s.clock.Now()
	cfg := s.currentConfig()
	ids := s.store.ActiveRoomIDs()
	metrics.ActiveRooms.Set(float64(len(ids)))

	passes := make([]roomPass, len(ids))
	g := &errgroup.Group{}
	g.SetLimit(cfg.MaxConcurrentRooms)
	for i, gameID := range ids {
		i, gameID := i, gameID
		g.Go(func() error {
			pass, _, err := s.reconcileRoom(ctx, gameID)
			if err != nil {
				log.WithFields(log.Fields{"game_id": gameID}).Error("Failed to reconcile room: %v", err)
			}
			passes[i] = pass
			return nil
		})
	}
	_ = g.Wait()

	summary := ReconciliationSummary{Rooms: len(ids)}
	for _, pass := range passes {
		switch pass.outcome {
		case outcomeSucceeded:
			summary.Succeeded++
		case outcomeFailed:
			summary.Failed++
		case outcomeSkipped:
			summary.Skipped++
		}
		summary.Inconsistencies += pass.inconsistencies
		if pass.bumped {
			summary.VersionBumps++
		}
	}

	s.lock.Lock()
	s.stats.LastReconciliation = start
	s.lock.Unlock()
	metrics.ReconciliationDuration.Observe(s.clock.Since(start).Seconds())

	if summary.Rooms > 0 {
		log.Debug("Reconciliation tick: %d rooms, %d succeeded, %d failed, %d skipped, %d inconsistencies",
			summary.Rooms, summary.Succeeded, summary.Failed, summary.Skipped, summary.Inconsistencies)
	}
	return summary
}

// ForceReconciliation reconciles one room immediately. A nil result with a
// nil error means the room was skipped: it is already being reconciled or
// has no durable record.
func (s *Scheduler) ForceReconciliation(ctx context.Context, gameID string) (*reconcile.Result, error) {
	_, result, err := s.reconcileRoom(ctx, gameID)
	return result, err
}

func (s *Scheduler) reconcileRoom(ctx context.Context, gameID string) (roomPass, *reconcile.Result, error) {
	release, ok := s.engine.TryAcquire(gameID)
	if !ok {
		s.count(roomPass{outcome: outcomeSkipped})
		return roomPass{outcome: outcomeSkipped}, nil, nil
	}
	defer release()

	result, err := s.engine.ReconcileHeld(ctx, gameID, nil)
	if err != nil {
		s.count(roomPass{outcome: outcomeFailed})
		return roomPass{outcome: outcomeFailed}, nil, err
	}
	if result == nil {
		s.count(roomPass{outcome: outcomeSkipped})
		return roomPass{outcome: outcomeSkipped}, nil, nil
	}

	pass := roomPass{outcome: outcomeSucceeded, inconsistencies: len(result.Inconsistencies)}
	for _, inc := range result.Inconsistencies {
		metrics.InconsistenciesTotal.WithLabelValues(inc.Type.String(), inc.Severity.String()).Inc()
	}

	// live owns connection flags; write them back so the next pass sees agreement
	for _, c := range result.LivenessCorrections {
		if err := s.repository.UpdatePlayerConnection(ctx, gameID, c.PlayerID, c.IsConnected); err != nil {
			log.WithFields(log.Fields{"game_id": gameID, "player_id": c.PlayerID}).Warn("Failed to correct durable connection flag: %v", err)
		}
	}

	if len(result.Inconsistencies) > 0 {
		applied, bumped, err := s.apply(gameID, result)
		if err != nil {
			if errors.Is(err, state.ErrRoomNotFound) {
				pass.outcome = outcomeSkipped
				s.count(pass)
				return pass, result, nil
			}
			pass.outcome = outcomeFailed
			s.count(pass)
			return pass, result, err
		}
		if bumped {
			pass.bumped = true
			result.State = applied
			s.broadcastReconciled(applied)
		}
	}

	s.count(pass)
	return pass, result, nil
}

// apply re-runs the pass's resolvers against the room as it is now, so that
// live changes made while the durable record was loading are kept.
func (s *Scheduler) apply(gameID string, result *reconcile.Result) (*rooms.RoomState, bool, error) {
	bumped := false
	now := s.clock.Now()
	applied, err := s.store.Mutate(gameID, func(room *rooms.RoomState) error {
		merged, _ := reconcile.Resolve(result.Inconsistencies, result.Durable, room)
		merged.LastReconciled = now
		if merged.Equal(room) {
			room.LastReconciled = now
			return nil
		}
		merged.Version = room.Version + 1
		*room = *merged
		bumped = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to apply merged state: %w", err)
	}
	return applied, bumped, nil
}

func (s *Scheduler) broadcastReconciled(room *rooms.RoomState) {
	s.broadcaster.Emit(room.GameID, messages.MessageTypeStateReconciled, messages.StateReconciled{
		GameID:    room.GameID,
		Version:   room.Version,
		Players:   room.OrderedPlayers(),
		HostID:    room.HostID,
		Status:    room.Status,
		Timestamp: room.LastReconciled,
	})
}

func (s *Scheduler) count(pass roomPass) {
	s.lock.Lock()
	defer s.lock.Unlock()
	switch pass.outcome {
	case outcomeSucceeded:
		s.stats.Successes++
		metrics.ReconciliationsTotal.WithLabelValues("success").Inc()
	case outcomeFailed:
		s.stats.Failures++
		metrics.ReconciliationsTotal.WithLabelValues("failure").Inc()
	case outcomeSkipped:
		s.stats.Skipped++
		metrics.ReconciliationsTotal.WithLabelValues("skipped").Inc()
	}
	s.stats.TotalInconsistencies += int64(pass.inconsistencies)
	if pass.bumped {
		s.stats.VersionBumps++
	}
}
