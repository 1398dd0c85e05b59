package dedupe

// Option applies a configuration option to the tracker.
type Option func(*inMemoryTracker)

// WithCapacityHint pre-sizes the fingerprint set for an expected number
// of concurrently open submissions.
func WithCapacityHint(n int) Option {
	return func(t *inMemoryTracker) {
		if n > 0 {
			t.held = make(map[string]struct{}, n)
		}
	}
}
