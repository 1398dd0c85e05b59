// Package dedupe tracks open submission fingerprints so a submitter
// cannot hold two open evidence items for the same challenge.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Tracker guards submission fingerprints for at-most-one-open semantics.
type Tracker interface {
	// Claim atomically records the fingerprint if it is not already
	// held. Returns true if the claim succeeded, false if the
	// fingerprint is held by open evidence.
	Claim(ctx context.Context, fingerprint string) bool

	// Release frees the fingerprint once its evidence settles, so the
	// same submitter and challenge pair can submit again.
	Release(ctx context.Context, fingerprint string)

	Size() int64
}

// Fingerprint derives the claim key for a submitter and challenge pair.
func Fingerprint(submitterID, challengeID string) string {
	return submitterID + "|" + challengeID
}

// inMemoryTracker implements Tracker with a mutex-guarded set.
type inMemoryTracker struct {
	mu   sync.Mutex
	held map[string]struct{}
	size atomic.Int64
}

// NewInMemoryTracker creates a new in-memory fingerprint tracker.
func NewInMemoryTracker(opts ...Option) Tracker {
	t := &inMemoryTracker{
		held: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Claim atomically records the fingerprint if it is not already held.
func (t *inMemoryTracker) Claim(_ context.Context, fingerprint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, held := t.held[fingerprint]; held {
		return false
	}
	t.held[fingerprint] = struct{}{}
	t.size.Add(1)
	return true
}

// Release frees the fingerprint.
func (t *inMemoryTracker) Release(_ context.Context, fingerprint string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, held := t.held[fingerprint]; held {
		delete(t.held, fingerprint)
		t.size.Add(-1)
	}
}

// Size returns the current number of held fingerprints.
func (t *inMemoryTracker) Size() int64 {
	return t.size.Load()
}
