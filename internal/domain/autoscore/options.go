package autoscore

import "time"

// Option applies a configuration option to the InMemoryScorer.
type Option func(*InMemoryScorer)

// WithDefaultBaseline sets the score given to specialties without an
// explicit baseline.
func WithDefaultBaseline(baseline float64) Option {
	return func(s *InMemoryScorer) {
		if baseline >= 0 {
			s.defaultBaseline = baseline
		}
	}
}

// WithSpecialtyBaselines sets per-specialty baselines from a
// configuration map.
func WithSpecialtyBaselines(baselines map[string]float64) Option {
	return func(s *InMemoryScorer) {
		s.specialtyBaselines = make(map[string]float64, len(baselines))
		for specialty, baseline := range baselines {
			if baseline >= 0 {
				s.specialtyBaselines[specialty] = baseline
			}
		}
	}
}

// WithScoreMax sets the upper clamp of computed scores.
func WithScoreMax(max float64) Option {
	return func(s *InMemoryScorer) {
		if max > 0 {
			s.scoreMax = max
		}
	}
}

// WithLatencyRange sets the simulated scoring-service latency.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *InMemoryScorer) {
		if minLatency >= 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}
