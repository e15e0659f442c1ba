package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/metrics"
	"github.com/cbodonnell/cardroom/pkg/queue"
	"github.com/cbodonnell/cardroom/pkg/repositories"
	"github.com/jonboulle/clockwork"
)

const shutdownFlushTimeout = 5 * time.Second

type PersistWorker struct {
	repository repositories.Repository
	queue      queue.Queue[repositories.Change]
	interval   time.Duration
	clock      clockwork.Clock
}

type NewPersistWorkerOptions struct {
	Repository repositories.Repository
	Queue      queue.Queue[repositories.Change]
	Interval   time.Duration
	Clock      clockwork.Clock
}

// NewPersistWorker creates a new PersistWorker.
// The worker drains changes queued by live room actions and
// periodically writes them to the repository in order.
func NewPersistWorker(opts NewPersistWorkerOptions) *PersistWorker {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &PersistWorker{
		repository: opts.Repository,
		queue:      opts.Queue,
		interval:   opts.Interval,
		clock:      opts.Clock,
	}
}

func (w *PersistWorker) Start(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// one last flush so a clean shutdown loses nothing
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
			w.Flush(flushCtx)
			cancel()
			return
		case <-ticker.Chan():
			w.Flush(ctx)
		}
	}
}

// Flush applies every queued change and returns how many failed.
func (w *PersistWorker) Flush(ctx context.Context) int {
	failed := 0
	for _, change := range w.queue.ReadAllMessages() {
		if err := change.Apply(ctx, w.repository); err != nil {
			failed++
			metrics.PersistFailuresTotal.Inc()
			log.WithFields(log.Fields{"game_id": change.GameID}).Error("Failed to persist change: %v", err)
		}
	}
	return failed
}
