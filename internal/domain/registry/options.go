// Package registry tracks validator profiles and answers candidate queries.
package registry

import "time"

// Option applies a configuration option to the InMemoryRegistry.
type Option func(*InMemoryRegistry)

// WithExpiryPenalty enables the rating penalty applied when a validator
// lets an assignment expire. The sample is folded into the running
// average like any other rating sample.
func WithExpiryPenalty(sample float64) Option {
	return func(r *InMemoryRegistry) {
		if sample >= 0 {
			r.expiryPenalty = sample
			r.penaltyEnabled = true
		}
	}
}

// WithClock sets the time source used for certification expiry checks.
func WithClock(now func() time.Time) Option {
	return func(r *InMemoryRegistry) {
		if now != nil {
			r.now = now
		}
	}
}
