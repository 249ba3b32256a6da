// Package dedupe drops redelivered feed pushes.
//
// The realtime feed delivers at least once. Every delivery carries an id; a
// Deduper remembers a bounded window of recent ids so a redelivery is
// recognised before it reaches reconciliation.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen delivery ids.
type Deduper interface {
	// SeenAndRecord reports whether id was already seen and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	Size() int64
}

// windowDeduper keeps the most recent ids in a ring. When the ring is full
// the oldest id is forgotten. A non-positive window is unbounded.
type windowDeduper struct {
	mu     sync.Mutex
	window int
	seen   map[string]int // id -> ring slot, -1 when unbounded
	ring   []string
	next   int
}

// NewInMemoryDeduper creates a deduper with a default window of 10000 ids.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &windowDeduper{window: 10_000}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]int)
	if d.window > 0 {
		d.ring = make([]string, d.window)
	}
	return d
}

func (d *windowDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.window <= 0 {
		d.seen[id] = -1
		return false
	}

	// Evict whatever still owns the slot.
	if old := d.ring[d.next]; old != "" {
		if slot, ok := d.seen[old]; ok && slot == d.next {
			delete(d.seen, old)
		}
	}
	d.ring[d.next] = id
	d.seen[id] = d.next
	d.next = (d.next + 1) % d.window
	return false
}

func (d *windowDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
