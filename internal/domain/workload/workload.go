// Package workload enforces per-validator assignment capacity.
//
// Reservation is a single compare-and-swap on an atomic counter, never a
// read-then-write sequence, so concurrent matching rounds can race on the
// same validator safely.
package workload

import (
	"sync"
	"sync/atomic"

	"github.com/questline/verity/pkg/metrics"
)

// Tracker reserves and releases validator capacity.
type Tracker interface {
	// Track registers a validator and its capacity. Re-tracking an id
	// updates the capacity but keeps the current load.
	Track(validatorID string, maxConcurrent int)

	// TryReserve atomically claims one assignment slot. It returns false
	// when the validator is unknown or at capacity.
	TryReserve(validatorID string) bool

	// Release returns one slot. Releasing below zero is clamped; callers
	// guard double-release with the assignment's released flag.
	Release(validatorID string)

	// Load reports the current load and capacity for a validator.
	Load(validatorID string) (current, max int, ok bool)
}

type counter struct {
	cur atomic.Int64
	max atomic.Int64
}

// InMemoryTracker implements Tracker with one atomic counter per validator.
type InMemoryTracker struct {
	mu       sync.RWMutex
	counters map[string]*counter
}

// NewInMemoryTracker creates an empty tracker.
func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{
		counters: make(map[string]*counter),
	}
}

// Track registers a validator's capacity.
func (t *InMemoryTracker) Track(validatorID string, maxConcurrent int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.counters[validatorID]
	if !ok {
		c = &counter{}
		t.counters[validatorID] = c
	}
	c.max.Store(int64(maxConcurrent))
}

// TryReserve atomically claims one slot if the validator has headroom.
func (t *InMemoryTracker) TryReserve(validatorID string) bool {
	c := t.counter(validatorID)
	if c == nil {
		return false
	}

	for {
		cur := c.cur.Load()
		if cur >= c.max.Load() {
			return false
		}
		if c.cur.CompareAndSwap(cur, cur+1) {
			t.observe(validatorID, c)
			return true
		}
	}
}

// Release returns one slot, never dropping below zero.
func (t *InMemoryTracker) Release(validatorID string) {
	c := t.counter(validatorID)
	if c == nil {
		return
	}

	for {
		cur := c.cur.Load()
		if cur <= 0 {
			return
		}
		if c.cur.CompareAndSwap(cur, cur-1) {
			t.observe(validatorID, c)
			return
		}
	}
}

// Load reports current load and capacity.
func (t *InMemoryTracker) Load(validatorID string) (int, int, bool) {
	c := t.counter(validatorID)
	if c == nil {
		return 0, 0, false
	}
	return int(c.cur.Load()), int(c.max.Load()), true
}

func (t *InMemoryTracker) counter(validatorID string) *counter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counters[validatorID]
}

func (t *InMemoryTracker) observe(validatorID string, c *counter) {
	max := c.max.Load()
	if max <= 0 {
		return
	}
	metrics.UpdateWorkloadRatio(validatorID, float64(c.cur.Load())/float64(max))
}
