// Package autoscore computes synthetic scores for evidence validated
// under the automatic policy.
package autoscore

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Default scoring configuration constants.
const (
	defaultBaseline = 5.0
	defaultScoreMax = 5.0
	defaultSeed     = 42
)

// Input abstracts the evidence fields needed for automatic scoring.
type Input struct {
	EvidenceID string
	Specialty  string
}

// Result contains the computed score for one evidence item.
type Result struct {
	EvidenceID string
	Score      float64
}

// Scorer computes a synthetic score. The implementation may simulate
// latency to model an external scoring service.
type Scorer interface {
	// Score computes a score, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// InMemoryScorer implements Scorer with per-specialty baselines.
type InMemoryScorer struct {
	// Specialty-specific baselines
	specialtyBaselines map[string]float64
	defaultBaseline    float64
	scoreMax           float64

	// Simulated scoring-service latency; zero means no delay
	minLatency time.Duration
	maxLatency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewInMemoryScorer creates a new in-memory scorer with configuration options.
func NewInMemoryScorer(opts ...Option) *InMemoryScorer {
	s := &InMemoryScorer{
		specialtyBaselines: make(map[string]float64),
		defaultBaseline:    defaultBaseline,
		scoreMax:           defaultScoreMax,
		rng:                rand.New(rand.NewSource(defaultSeed)), //nolint:gosec // deterministic seed for reproducible scoring
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Score computes a synthetic score for the given input.
func (s *InMemoryScorer) Score(ctx context.Context, in Input) (Result, error) {
	if s.maxLatency > s.minLatency {
		s.mu.Lock()
		latency := s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)))
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-time.After(latency):
		}
	}

	baseline, ok := s.specialtyBaselines[in.Specialty]
	if !ok {
		baseline = s.defaultBaseline
	}

	score := math.Max(0, math.Min(s.scoreMax, baseline))

	return Result{
		EvidenceID: in.EvidenceID,
		Score:      score,
	}, nil
}

// SetSpecialtyBaseline allows customization of per-specialty scoring.
func (s *InMemoryScorer) SetSpecialtyBaseline(specialty string, baseline float64) {
	s.specialtyBaselines[specialty] = baseline
}
