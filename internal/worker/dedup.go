package worker

import (
	"sync"
	"time"
)

// dedup remembers envelope IDs for a TTL window. Delivery is
// at-least-once on every bus backend, so consumers suppress duplicate
// side effects by ID.
type dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

func newDedup(ttl time.Duration) *dedup {
	return &dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Check reports whether id was already handled.
func (d *dedup) Check(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.seen[id]
	return ok && time.Now().Before(exp)
}

// Mark records id as handled. Called only after handling finished, so
// a redelivery of a failed envelope is not mistaken for a duplicate.
func (d *dedup) Mark(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
	d.seen[id] = now.Add(d.ttl)
}
