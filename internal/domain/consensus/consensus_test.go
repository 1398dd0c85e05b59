package consensus_test

import (
	"math/rand"
	"testing"

	"github.com/questline/verity/internal/domain/consensus"
	"github.com/questline/verity/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func scores(values ...float64) []model.Score {
	out := make([]model.Score, len(values))
	for i, v := range values {
		out[i] = model.Score{ValidatorID: "v", Value: v}
	}
	return out
}

func TestResolver_PeerQuorum(t *testing.T) {
	Convey("Given a peer resolver with the illustrative thresholds", t, func() {
		r := consensus.New(
			consensus.WithApproveThreshold(4),
			consensus.WithHardRejectFloor(2),
			consensus.WithDisagreementSpread(3),
		)

		Convey("When fewer scores than the quorum are collected", func() {
			_, decided := r.Resolve(model.PolicyPeer, scores(5, 4), 3)
			So(decided, ShouldBeFalse)
		})

		Convey("When scores [5,4,5] reach quorum", func() {
			out, decided := r.Resolve(model.PolicyPeer, scores(5, 4, 5), 3)

			Convey("Then the evidence is approved with the rounded average", func() {
				So(decided, ShouldBeTrue)
				So(out.Status, ShouldEqual, model.EvidenceApproved)
				So(out.FinalScore, ShouldEqual, 4.67)
			})
		})

		Convey("When scores [5,1,5] are highly divergent", func() {
			out, decided := r.Resolve(model.PolicyPeer, scores(5, 1, 5), 3)

			Convey("Then the evidence is flagged even though the average approves", func() {
				So(decided, ShouldBeTrue)
				So(out.Status, ShouldEqual, model.EvidenceFlagged)
			})
		})

		Convey("When the average falls below the approve threshold", func() {
			out, decided := r.Resolve(model.PolicyPeer, scores(4, 3, 3), 3)

			So(decided, ShouldBeTrue)
			So(out.Status, ShouldEqual, model.EvidenceRejected)
			So(out.FinalScore, ShouldEqual, 3.33)
		})
	})

	Convey("Given the divergence check is disabled", t, func() {
		r := consensus.New(
			consensus.WithApproveThreshold(4),
			consensus.WithHardRejectFloor(2),
			consensus.WithDisagreementSpread(0),
		)

		Convey("When scores [5,1,4] contain one below the hard floor", func() {
			out, decided := r.Resolve(model.PolicyPeer, scores(5, 1, 4), 3)

			Convey("Then the evidence is rejected regardless of the average", func() {
				So(decided, ShouldBeTrue)
				So(out.Status, ShouldEqual, model.EvidenceRejected)
			})
		})
	})
}

func TestResolver_Determinism(t *testing.T) {
	Convey("Given the same three scores in any submission order", t, func() {
		r := consensus.New()
		base := []float64{5, 4, 5}
		want, decided := r.Resolve(model.PolicyPeer, scores(base...), 3)
		So(decided, ShouldBeTrue)

		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 20; i++ {
			shuffled := append([]float64(nil), base...)
			rng.Shuffle(len(shuffled), func(a, b int) {
				shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
			})

			out, ok := r.Resolve(model.PolicyPeer, scores(shuffled...), 3)
			So(ok, ShouldBeTrue)
			So(out.Status, ShouldEqual, want.Status)
			So(out.FinalScore, ShouldEqual, want.FinalScore)
		}
	})
}

func TestResolver_Moderator(t *testing.T) {
	Convey("Given a moderator resolver", t, func() {
		r := consensus.New() // 0.5 fraction of a 0..5 range

		Convey("When no score has arrived", func() {
			_, decided := r.Resolve(model.PolicyModerator, nil, 1)
			So(decided, ShouldBeFalse)
		})

		Convey("When the single score meets the boundary", func() {
			out, decided := r.Resolve(model.PolicyModerator, scores(2.5), 1)
			So(decided, ShouldBeTrue)
			So(out.Status, ShouldEqual, model.EvidenceApproved)
		})

		Convey("When the single score is under the boundary", func() {
			out, decided := r.Resolve(model.PolicyModerator, scores(2.4), 1)
			So(decided, ShouldBeTrue)
			So(out.Status, ShouldEqual, model.EvidenceRejected)
		})

		Convey("And no averaging happens with stray extra scores", func() {
			out, decided := r.Resolve(model.PolicyModerator, scores(5, 0), 1)
			So(decided, ShouldBeTrue)
			So(out.Status, ShouldEqual, model.EvidenceApproved)
			So(out.FinalScore, ShouldEqual, 5)
		})
	})
}

func TestResolver_Automatic(t *testing.T) {
	Convey("Given an automatic policy", t, func() {
		r := consensus.New()

		out, decided := r.Resolve(model.PolicyAutomatic, scores(r.AutoApproveScore()), 1)
		So(decided, ShouldBeTrue)
		So(out.Status, ShouldEqual, model.EvidenceApproved)
		So(out.FinalScore, ShouldEqual, 5)
	})
}

func TestResolver_ValidScore(t *testing.T) {
	Convey("Given the default 0..5 score range", t, func() {
		r := consensus.New()

		So(r.ValidScore(0), ShouldBeTrue)
		So(r.ValidScore(5), ShouldBeTrue)
		So(r.ValidScore(-0.1), ShouldBeFalse)
		So(r.ValidScore(5.1), ShouldBeFalse)
	})
}
