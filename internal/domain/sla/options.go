package sla

import (
	"time"

	"github.com/questline/verity/pkg/logger"
)

// Option is the functional option for the Supervisor.
type Option func(*Supervisor)

// WithInterval sets the sweep loop period.
func WithInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithMaxEscalationDepth bounds how many breaches one evidence item may
// accumulate before it is permanently flagged.
func WithMaxEscalationDepth(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxEscalationDepth = n
		}
	}
}

// WithPenalizer enables the expiry rating penalty hook.
func WithPenalizer(p Penalizer) Option {
	return func(s *Supervisor) {
		s.penalizer = p
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Supervisor) {
		s.logger = l
	}
}
