// Package consensus turns collected validator scores into one
// authoritative evidence decision.
package consensus

import (
	"math"

	"github.com/questline/verity/internal/domain/model"
)

// Default threshold constants. These mirror the product's illustrative
// configuration; deployments override them through options.
const (
	defaultApproveThreshold     = 4.0
	defaultHardRejectFloor      = 2.0
	defaultDisagreementSpread   = 3.0
	defaultModeratorApproveFrac = 0.5
	defaultScoreMin             = 0.0
	defaultScoreMax             = 5.0
	defaultAutoApproveScore     = 5.0
)

// Outcome is the resolver's verdict on an evidence item.
type Outcome struct {
	Status     model.EvidenceStatus
	FinalScore float64
	Reason     string
}

// Resolver aggregates completed scores into evidence decisions.
type Resolver struct {
	approveThreshold     float64
	hardRejectFloor      float64 // <= 0 disables the floor
	disagreementSpread   float64 // <= 0 disables the divergence check
	moderatorApproveFrac float64
	scoreMin             float64
	scoreMax             float64
	autoApproveScore     float64
}

// New creates a Resolver with configuration options.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		approveThreshold:     defaultApproveThreshold,
		hardRejectFloor:      defaultHardRejectFloor,
		disagreementSpread:   defaultDisagreementSpread,
		moderatorApproveFrac: defaultModeratorApproveFrac,
		scoreMin:             defaultScoreMin,
		scoreMax:             defaultScoreMax,
		autoApproveScore:     defaultAutoApproveScore,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ValidScore reports whether a score is inside the declared range.
func (r *Resolver) ValidScore(v float64) bool {
	return v >= r.scoreMin && v <= r.scoreMax
}

// AutoApproveScore is the synthetic score recorded for automatic policy.
func (r *Resolver) AutoApproveScore() float64 {
	return r.autoApproveScore
}

// Resolve computes the decision for the collected scores. The second
// return value is false while the quorum has not been reached. The
// decision is deterministic for the same scores in any order.
func (r *Resolver) Resolve(policy model.Policy, scores []model.Score, quorum int) (Outcome, bool) {
	switch policy {
	case model.PolicyModerator:
		return r.resolveModerator(scores)
	case model.PolicyAutomatic:
		return r.resolveAutomatic(scores)
	default:
		return r.resolvePeer(scores, quorum)
	}
}

// resolvePeer applies the quorum rules: divergent scores flag the
// evidence for moderator re-evaluation, a score under the hard floor
// rejects, otherwise the average against the approve threshold decides.
func (r *Resolver) resolvePeer(scores []model.Score, quorum int) (Outcome, bool) {
	if quorum <= 0 || len(scores) < quorum {
		return Outcome{}, false
	}

	min, max, sum := scores[0].Value, scores[0].Value, 0.0
	for _, s := range scores {
		if s.Value < min {
			min = s.Value
		}
		if s.Value > max {
			max = s.Value
		}
		sum += s.Value
	}
	avg := round2(sum / float64(len(scores)))

	if r.disagreementSpread > 0 && max-min > r.disagreementSpread {
		return Outcome{
			Status:     model.EvidenceFlagged,
			FinalScore: avg,
			Reason:     "score disagreement exceeds threshold",
		}, true
	}

	if r.hardRejectFloor > 0 && min < r.hardRejectFloor {
		return Outcome{
			Status:     model.EvidenceRejected,
			FinalScore: avg,
			Reason:     "score below hard reject floor",
		}, true
	}

	if avg >= r.approveThreshold {
		return Outcome{Status: model.EvidenceApproved, FinalScore: avg}, true
	}
	return Outcome{
		Status:     model.EvidenceRejected,
		FinalScore: avg,
		Reason:     "average below approve threshold",
	}, true
}

// resolveModerator treats the single moderator score as authoritative.
func (r *Resolver) resolveModerator(scores []model.Score) (Outcome, bool) {
	if len(scores) == 0 {
		return Outcome{}, false
	}
	v := scores[0].Value
	if v >= r.moderatorApproveFrac*r.scoreMax {
		return Outcome{Status: model.EvidenceApproved, FinalScore: round2(v)}, true
	}
	return Outcome{
		Status:     model.EvidenceRejected,
		FinalScore: round2(v),
		Reason:     "moderator rejection",
	}, true
}

// resolveAutomatic approves on the synthetic score.
func (r *Resolver) resolveAutomatic(scores []model.Score) (Outcome, bool) {
	if len(scores) == 0 {
		return Outcome{}, false
	}
	return Outcome{Status: model.EvidenceApproved, FinalScore: round2(scores[0].Value)}, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
