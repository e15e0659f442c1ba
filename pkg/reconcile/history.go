package reconcile

import (
	"time"

	"github.com/cbodonnell/cardroom/pkg/rooms"
)

const DefaultHistorySize = 100

// Record summarizes one completed reconciliation pass.
type Record struct {
	GameID             string              `json:"gameId"`
	Timestamp          time.Time           `json:"timestamp"`
	InconsistencyCount int                 `json:"inconsistencyCount"`
	Types              []InconsistencyType `json:"types"`
	PlayerCount        int                 `json:"playerCount"`
	HostID             string              `json:"hostId"`
	Status             rooms.Status        `json:"status"`
	Changed            bool                `json:"changed"`
}

// ring keeps the most recent size items.
type ring[T any] struct {
	items []T
	next  int
	full  bool
}

func newRing[T any](size int) *ring[T] {
	if size < 1 {
		size = 1
	}
	return &ring[T]{items: make([]T, size)}
}

func (r *ring[T]) push(v T) {
	r.items[r.next] = v
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring[T]) len() int {
	if r.full {
		return len(r.items)
	}
	return r.next
}

// list returns the items oldest first.
func (r *ring[T]) list() []T {
	out := make([]T, 0, r.len())
	if r.full {
		out = append(out, r.items[r.next:]...)
	}
	return append(out, r.items[:r.next]...)
}
