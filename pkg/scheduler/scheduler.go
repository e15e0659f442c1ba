package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/reconcile"
	"github.com/cbodonnell/cardroom/pkg/repositories"
	"github.com/cbodonnell/cardroom/pkg/state"
	"github.com/jonboulle/clockwork"
)

// ConnectionChecker reports whether a connection reference still maps to an open connection.
type ConnectionChecker interface {
	IsAlive(connectionRef string) bool
}

// Broadcaster is the fire-and-forget emit primitive of the transport.
type Broadcaster interface {
	Emit(gameID string, event string, payload interface{})
	EmitAll(event string, payload interface{})
}

// Scheduler periodically reconciles live rooms against durable storage,
// cleans up stale players and rooms, and raises alerts on its own statistics.
type Scheduler struct {
	store       state.RoomStore
	engine      *reconcile.Engine
	repository  repositories.Repository
	connections ConnectionChecker
	broadcaster Broadcaster
	clock       clockwork.Clock

	lifecycle  sync.Mutex
	parent     context.Context
	cancel     context.CancelFunc
	generation int
	wg         sync.WaitGroup

	lock       sync.Mutex
	config     Config
	running    bool
	stats      Stats
	lastAlerts []messages.Alert
}

type NewSchedulerOptions struct {
	Store       state.RoomStore
	Engine      *reconcile.Engine
	Repository  repositories.Repository
	Connections ConnectionChecker
	Broadcaster Broadcaster
	Clock       clockwork.Clock
	Config      Config
}

func NewScheduler(opts NewSchedulerOptions) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = noopBroadcaster{}
	}
	return &Scheduler{
		store:       opts.Store,
		engine:      opts.Engine,
		repository:  opts.Repository,
		connections: opts.Connections,
		broadcaster: opts.Broadcaster,
		clock:       opts.Clock,
		config:      opts.Config,
		stats:       Stats{Since: opts.Clock.Now()},
	}
}

// Start arms the reconciliation, cleanup and monitoring timers.
// Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.start(ctx)
}

func (s *Scheduler) start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	cfg := s.currentConfig()
	s.parent = ctx
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.generation++

	s.wg.Add(3)
	go s.runEvery(runCtx, cfg.ReconciliationInterval, func(ctx context.Context) { s.RunReconciliation(ctx) })
	go s.runEvery(runCtx, cfg.CleanupInterval, func(ctx context.Context) { s.RunCleanup(ctx) })
	go s.runEvery(runCtx, cfg.MonitoringInterval, func(context.Context) { s.RunMonitoring() })
	go s.stopWithParent(ctx, runCtx, s.generation)

	s.lock.Lock()
	s.running = true
	s.lock.Unlock()
	log.Info("Scheduler started: reconciliation every %v, cleanup every %v, monitoring every %v",
		cfg.ReconciliationInterval, cfg.CleanupInterval, cfg.MonitoringInterval)
}

// Stop cancels all timers and waits for in-progress ticks to return.
// Calling Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stop()
}

func (s *Scheduler) stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.wg.Wait()

	s.lock.Lock()
	s.running = false
	s.lock.Unlock()
	log.Info("Scheduler stopped")
}

// stopWithParent marks the scheduler stopped once the context it was started
// with is cancelled, unless it has been stopped or restarted since.
func (s *Scheduler) stopWithParent(parent, runCtx context.Context, generation int) {
	<-runCtx.Done()
	if parent.Err() == nil {
		return
	}
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.generation != generation || s.cancel == nil {
		return
	}
	s.stop()
}

// UpdateConfig merges update into the current config and, if the scheduler
// is running, restarts all three timers with the new intervals.
func (s *Scheduler) UpdateConfig(update ConfigUpdate) (Config, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.lock.Lock()
	next := update.apply(s.config)
	if err := next.Validate(); err != nil {
		s.lock.Unlock()
		return s.config, err
	}
	s.config = next
	s.lock.Unlock()

	if s.cancel != nil {
		parent := s.parent
		s.stop()
		s.start(parent)
	}
	return next, nil
}

func (s *Scheduler) runEvery(ctx context.Context, interval time.Duration, tick func(ctx context.Context)) {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			tick(ctx)
		}
	}
}

func (s *Scheduler) currentConfig() Config {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.config
}

func (s *Scheduler) IsRunning() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.running
}

func (s *Scheduler) GetStatus() Status {
	s.lock.Lock()
	cfg := s.config
	running := s.running
	stats := s.stats
	s.lock.Unlock()

	return Status{
		IsRunning: running,
		Intervals: Intervals{
			Reconciliation: cfg.ReconciliationInterval,
			Cleanup:        cfg.CleanupInterval,
			Monitoring:     cfg.MonitoringInterval,
		},
		Thresholds:   cfg.Thresholds,
		Stats:        stats,
		ActiveRooms:  len(s.store.ActiveRoomIDs()),
		RoomVersions: s.store.Versions(),
	}
}

func (s *Scheduler) GetDetailedStats() DetailedStats {
	s.lock.Lock()
	stats := s.stats
	cfg := s.config
	alerts := append([]messages.Alert{}, s.lastAlerts...)
	s.lock.Unlock()

	success, failure, inconsistency := stats.rates()
	return DetailedStats{
		Stats:             stats,
		Attempts:          stats.Attempts(),
		SuccessRate:       success,
		FailureRate:       failure,
		InconsistencyRate: inconsistency,
		LastAlerts:        alerts,
		RecentPasses:      s.engine.Records(),
		InFlight:          s.engine.InFlight(),
		Config:            cfg,
	}
}

func (s *Scheduler) ResetStats() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stats = Stats{Since: s.clock.Now()}
	s.lastAlerts = nil
}

type noopBroadcaster struct{}

func (noopBroadcaster) Emit(string, string, interface{}) {}
func (noopBroadcaster) EmitAll(string, interface{})      {}
