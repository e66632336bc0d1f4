// Package dedupe tracks submission IDs for at-most-once processing.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Default bound for remembered submission IDs.
const defaultMaxSize = 50000

// Tracker records seen submission IDs to ensure at-most-once processing.
type Tracker interface {
	// SeenAndRecord atomically checks whether id was seen and records it
	// if not. Returns true when id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets an ID so it can be retried. Use only when a
	// submission was recorded but failed to enter the pipeline
	// (e.g. queue backpressure).
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryTracker implements Tracker with a map for membership and an
// insertion-order queue for eviction. Unrecord leaves a hole in the queue
// that eviction skips lazily; compact reclaims the dead prefix once it
// dominates the slice. A re-recorded ID appears twice in the queue and may
// be evicted earlier than strict insertion order would suggest, which is
// acceptable for a bounded best-effort memory.
type inMemoryTracker struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion order; may contain already-forgotten ids
	tail    int      // index of the oldest not-yet-evicted entry
	maxSize int      // 0 or negative = unbounded, no eviction
	size    atomic.Int64
}

// NewTracker creates an in-memory tracker with configuration options.
func NewTracker(opts ...Option) Tracker {
	t := &inMemoryTracker{
		maxSize: defaultMaxSize,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.seen = make(map[string]struct{})
	return t
}

// SeenAndRecord atomically checks whether id was seen and records it if not.
// Returns true when id was already seen, false when it was newly recorded.
func (t *inMemoryTracker) SeenAndRecord(ctx context.Context, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.seen[id]; exists {
		return true
	}

	if t.maxSize > 0 {
		for len(t.seen) >= t.maxSize && t.evictOldest() {
		}
		t.order = append(t.order, id)
	}
	t.seen[id] = struct{}{}
	t.size.Store(int64(len(t.seen)))
	return false
}

// Unrecord forgets an ID, allowing it to be recorded again.
func (t *inMemoryTracker) Unrecord(ctx context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.seen[id]; !exists {
		return
	}
	delete(t.seen, id)
	// the queue entry stays behind as a hole; eviction skips it
	t.size.Store(int64(len(t.seen)))
}

// evictOldest drops the oldest live entry and reports whether anything
// was evicted. Caller holds t.mu.
func (t *inMemoryTracker) evictOldest() bool {
	evicted := false
	for t.tail < len(t.order) {
		id := t.order[t.tail]
		t.tail++
		if _, live := t.seen[id]; live {
			delete(t.seen, id)
			evicted = true
			break
		}
	}
	t.compact()
	return evicted
}

// compact reclaims the evicted prefix once it outgrows the live tail.
// Caller holds t.mu.
func (t *inMemoryTracker) compact() {
	if t.tail > 64 && t.tail > len(t.order)/2 {
		t.order = append([]string(nil), t.order[t.tail:]...)
		t.tail = 0
	}
}

// Size returns the current number of remembered IDs.
func (t *inMemoryTracker) Size() int64 {
	return t.size.Load()
}
