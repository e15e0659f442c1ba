package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/repositories"
	"github.com/cbodonnell/cardroom/pkg/repositories/models"
	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LiveSource provides the current live snapshot of a room.
type LiveSource interface {
	Snapshot(gameID string) (*rooms.RoomState, bool)
}

// LivenessCorrection is a durable connection flag that disagrees with the merged live view.
type LivenessCorrection struct {
	PlayerID    string
	IsConnected bool
}

type Result struct {
	GameID          string
	State           *rooms.RoomState
	Inconsistencies []Inconsistency
	// Changed is true when State differs from the live snapshot it was built from.
	Changed             bool
	LivenessCorrections []LivenessCorrection
	ResolveErrors       []error
	// Durable is the record the pass was computed against.
	Durable *models.Room
}

type Engine struct {
	repo        repositories.Repository
	live        LiveSource
	clock       clockwork.Clock
	guard       *keyedGuard
	tracer      trace.Tracer
	historySize int

	lock    sync.Mutex
	history map[string]*ring[Inconsistency]
	records *ring[Record]
}

type NewEngineOptions struct {
	Repository  repositories.Repository
	Live        LiveSource
	Clock       clockwork.Clock
	HistorySize int
}

func NewEngine(opts NewEngineOptions) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	return &Engine{
		repo:        opts.Repository,
		live:        opts.Live,
		clock:       opts.Clock,
		guard:       newKeyedGuard(),
		tracer:      otel.Tracer("github.com/cbodonnell/cardroom/pkg/reconcile"),
		historySize: opts.HistorySize,
		history:     make(map[string]*ring[Inconsistency]),
		records:     newRing[Record](opts.HistorySize),
	}
}

// TryAcquire claims the room for exclusive reconciliation work.
// The returned release func must be called once the work is done.
func (e *Engine) TryAcquire(gameID string) (func(), bool) {
	return e.guard.TryAcquire(gameID)
}

// InFlight returns the rooms currently being reconciled.
func (e *Engine) InFlight() []string {
	return e.guard.Held()
}

// ReconcileRoomState merges the durable record for gameID into the live snapshot.
// live may be nil, in which case the engine reads it from its LiveSource.
// A nil result with a nil error means there was nothing to do: another pass
// holds the room, or it has no durable record.
// The merged state is returned, not applied.
func (e *Engine) ReconcileRoomState(ctx context.Context, gameID string, live *rooms.RoomState) (*Result, error) {
	release, ok := e.TryAcquire(gameID)
	if !ok {
		log.Debug("Reconciliation already in progress for room %s", gameID)
		return nil, nil
	}
	defer release()
	return e.reconcile(ctx, gameID, live)
}

// ReconcileHeld is ReconcileRoomState for a caller that already holds the room via TryAcquire.
func (e *Engine) ReconcileHeld(ctx context.Context, gameID string, live *rooms.RoomState) (*Result, error) {
	return e.reconcile(ctx, gameID, live)
}

func (e *Engine) reconcile(ctx context.Context, gameID string, live *rooms.RoomState) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.room", trace.WithAttributes(attribute.String("game_id", gameID)))
	defer span.End()

	durable, err := e.repo.FindByID(ctx, gameID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load durable room")
		return nil, fmt.Errorf("failed to load durable room %s: %w", gameID, err)
	}

	if live == nil && e.live != nil {
		if snapshot, ok := e.live.Snapshot(gameID); ok {
			live = snapshot
		}
	}
	if live == nil {
		live = rooms.NewRoomState(gameID)
	}

	now := e.clock.Now()
	inconsistencies := DetectInconsistencies(live, durable, now)
	merged, errs := Resolve(inconsistencies, durable, live)
	for _, err := range errs {
		log.WithFields(log.Fields{"game_id": gameID}).Warn("%v", err)
	}
	changed := !merged.Equal(live)
	merged.LastReconciled = now

	result := &Result{
		GameID:              gameID,
		State:               merged,
		Inconsistencies:     inconsistencies,
		Changed:             changed,
		LivenessCorrections: livenessCorrections(merged, durable),
		ResolveErrors:       errs,
		Durable:             durable,
	}
	e.record(result, now)

	span.SetAttributes(
		attribute.Int("inconsistencies", len(inconsistencies)),
		attribute.Bool("changed", changed),
	)
	if len(inconsistencies) > 0 {
		log.WithFields(log.Fields{"game_id": gameID}).Debug("Resolved %d inconsistencies", len(inconsistencies))
	}
	return result, nil
}

func livenessCorrections(merged *rooms.RoomState, durable *models.Room) []LivenessCorrection {
	var corrections []LivenessCorrection
	for _, m := range durable.Players {
		p, ok := merged.Players[m.PlayerID]
		if ok && p.IsConnected != m.IsConnected {
			corrections = append(corrections, LivenessCorrection{PlayerID: m.PlayerID, IsConnected: p.IsConnected})
		}
	}
	return corrections
}

func (e *Engine) record(result *Result, now time.Time) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if len(result.Inconsistencies) > 0 {
		h, ok := e.history[result.GameID]
		if !ok {
			h = newRing[Inconsistency](e.historySize)
			e.history[result.GameID] = h
		}
		for _, inc := range result.Inconsistencies {
			h.push(inc)
		}
	}
	types := make([]InconsistencyType, 0, len(result.Inconsistencies))
	for _, inc := range result.Inconsistencies {
		types = append(types, inc.Type)
	}
	e.records.push(Record{
		GameID:             result.GameID,
		Timestamp:          now,
		InconsistencyCount: len(result.Inconsistencies),
		Types:              types,
		PlayerCount:        len(result.State.Players),
		HostID:             result.State.HostID,
		Status:             result.State.Status,
		Changed:            result.Changed,
	})
}

// History returns the recent inconsistencies seen for gameID, oldest first.
func (e *Engine) History(gameID string) []Inconsistency {
	e.lock.Lock()
	defer e.lock.Unlock()
	h, ok := e.history[gameID]
	if !ok {
		return []Inconsistency{}
	}
	return h.list()
}

// Records returns the most recent reconciliation passes across all rooms, oldest first.
func (e *Engine) Records() []Record {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.records.list()
}

// Forget drops the inconsistency history of a room that no longer exists.
func (e *Engine) Forget(gameID string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	delete(e.history, gameID)
}
