// Package matcher selects and reserves validators for submitted evidence.
package matcher

import (
	"math/rand"
	"time"

	"github.com/questline/verity/pkg/logger"
)

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithWeights sets the ranking weights for specialty fit, headroom and rating.
func WithWeights(specialty, load, rating float64) Option {
	return func(m *Matcher) {
		if specialty >= 0 && load >= 0 && rating >= 0 {
			m.specialtyWeight = specialty
			m.loadWeight = load
			m.ratingWeight = rating
		}
	}
}

// WithJitter sets the amplitude of the random ranking jitter.
// Zero disables jitter, which makes ranking fully deterministic.
func WithJitter(amplitude float64) Option {
	return func(m *Matcher) {
		if amplitude >= 0 {
			m.jitter = amplitude
		}
	}
}

// WithRatingScale sets the maximum rating used for normalization.
func WithRatingScale(scale float64) Option {
	return func(m *Matcher) {
		if scale > 0 {
			m.ratingScale = scale
		}
	}
}

// WithMinRating sets the minimum rating candidates must have.
func WithMinRating(min float64) Option {
	return func(m *Matcher) {
		if min >= 0 {
			m.minRating = min
		}
	}
}

// WithRand sets the jitter random source; useful for reproducible tests.
func WithRand(rng *rand.Rand) Option {
	return func(m *Matcher) {
		if rng != nil {
			m.rng = rng
		}
	}
}

// WithClock sets the time source for assignment timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets a custom logger for the matcher.
func WithLogger(l logger.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}
