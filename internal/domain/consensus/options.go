// Package consensus turns collected validator scores into one
// authoritative evidence decision.
package consensus

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithApproveThreshold sets the minimum average for approval.
func WithApproveThreshold(v float64) Option {
	return func(r *Resolver) {
		if v > 0 {
			r.approveThreshold = v
		}
	}
}

// WithHardRejectFloor sets the score below which any single score
// rejects the evidence. Zero disables the floor.
func WithHardRejectFloor(v float64) Option {
	return func(r *Resolver) {
		if v >= 0 {
			r.hardRejectFloor = v
		}
	}
}

// WithDisagreementSpread sets the max-min spread beyond which a quorum
// is flagged instead of resolved. Zero disables the check.
func WithDisagreementSpread(v float64) Option {
	return func(r *Resolver) {
		if v >= 0 {
			r.disagreementSpread = v
		}
	}
}

// WithModeratorApproveFraction sets the fraction of the score range at
// or above which a moderator score approves.
func WithModeratorApproveFraction(v float64) Option {
	return func(r *Resolver) {
		if v > 0 && v <= 1 {
			r.moderatorApproveFrac = v
		}
	}
}

// WithScoreRange sets the declared valid score range.
func WithScoreRange(min, max float64) Option {
	return func(r *Resolver) {
		if max > min {
			r.scoreMin = min
			r.scoreMax = max
		}
	}
}

// WithAutoApproveScore sets the synthetic score used by automatic policy.
func WithAutoApproveScore(v float64) Option {
	return func(r *Resolver) {
		if v >= 0 {
			r.autoApproveScore = v
		}
	}
}
