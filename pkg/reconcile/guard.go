package reconcile

import (
	"sort"
	"sync"
)

// keyedGuard admits at most one holder per key. Callers that lose the race
// are turned away rather than queued.
type keyedGuard struct {
	lock sync.Mutex
	held map[string]struct{}
}

func newKeyedGuard() *keyedGuard {
	return &keyedGuard{held: make(map[string]struct{})}
}

func (g *keyedGuard) TryAcquire(key string) (func(), bool) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if _, ok := g.held[key]; ok {
		return nil, false
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.lock.Lock()
			delete(g.held, key)
			g.lock.Unlock()
		})
	}, true
}

func (g *keyedGuard) Held() []string {
	g.lock.Lock()
	defer g.lock.Unlock()
	keys := make([]string, 0, len(g.held))
	for k := range g.held {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
