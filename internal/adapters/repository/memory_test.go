package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/questline/verity/internal/adapters/repository"
	"github.com/questline/verity/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newEvidence(id string) model.Evidence {
	return model.Evidence{
		ID:                      id,
		SubmitterID:             "user-1",
		ChallengeID:             "challenge-1",
		Policy:                  model.PolicyPeer,
		Status:                  model.EvidencePending,
		RequiredValidationCount: 3,
		SubmittedAt:             time.Now(),
	}
}

func newAssignment(id, evidenceID, validatorID string) model.Assignment {
	return model.Assignment{
		ID:          id,
		EvidenceID:  evidenceID,
		ValidatorID: validatorID,
		Status:      model.AssignmentPending,
		AssignedAt:  time.Now(),
		DueAt:       time.Now().Add(time.Hour),
	}
}

func TestMemoryEvidenceStore(t *testing.T) {
	Convey("Given an evidence store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryEvidenceStore()
		So(s.Create(ctx, newEvidence("e1")), ShouldBeNil)

		Convey("When creating a duplicate id", func() {
			So(s.Create(ctx, newEvidence("e1")), ShouldEqual, repository.ErrEvidenceExists)
		})

		Convey("When swapping status with the right expectation", func() {
			ok, err := s.CompareAndSwapStatus(ctx, "e1",
				[]model.EvidenceStatus{model.EvidencePending}, model.EvidenceInReview)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			ev, _ := s.Get(ctx, "e1")
			So(ev.Status, ShouldEqual, model.EvidenceInReview)
		})

		Convey("When swapping status with a stale expectation", func() {
			ok, err := s.CompareAndSwapStatus(ctx, "e1",
				[]model.EvidenceStatus{model.EvidenceInReview}, model.EvidenceApproved)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("When appending scores", func() {
			for i := 0; i < 3; i++ {
				scores, appended, err := s.AppendScore(ctx, "e1", model.Score{ValidatorID: "v", Value: 4})
				So(err, ShouldBeNil)
				So(appended, ShouldBeTrue)
				So(len(scores), ShouldEqual, i+1)
			}

			Convey("Then a fourth score is refused at the quorum cap", func() {
				scores, appended, err := s.AppendScore(ctx, "e1", model.Score{ValidatorID: "v", Value: 4})
				So(err, ShouldBeNil)
				So(appended, ShouldBeFalse)
				So(len(scores), ShouldEqual, 3)
			})
		})

		Convey("When the evidence is decided", func() {
			ok, err := s.Decide(ctx, "e1", model.EvidenceApproved, 4.5)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			Convey("Then a second decision is refused", func() {
				ok, err := s.Decide(ctx, "e1", model.EvidenceRejected, 1)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})

			Convey("And appended scores are refused", func() {
				_, _, err := s.AppendScore(ctx, "e1", model.Score{Value: 5})
				So(err, ShouldEqual, repository.ErrEvidenceTerminal)
			})

			Convey("And the decision is readable", func() {
				ev, err := s.Get(ctx, "e1")
				So(err, ShouldBeNil)
				So(ev.Status, ShouldEqual, model.EvidenceApproved)
				So(ev.FinalScore, ShouldEqual, 4.5)
				So(ev.DecidedAt.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When reading unknown evidence", func() {
			_, err := s.Get(ctx, "nope")
			So(err, ShouldEqual, repository.ErrEvidenceNotFound)
		})
	})
}

func TestMemoryAssignmentStore_PairUniqueness(t *testing.T) {
	Convey("Given an assignment store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryAssignmentStore()
		So(s.Create(ctx, newAssignment("a1", "e1", "v1")), ShouldBeNil)

		Convey("Then a second active assignment for the pair is refused", func() {
			err := s.Create(ctx, newAssignment("a2", "e1", "v1"))
			So(err, ShouldEqual, repository.ErrDuplicateAssignment)
		})

		Convey("And a different validator for the same evidence is fine", func() {
			So(s.Create(ctx, newAssignment("a2", "e1", "v2")), ShouldBeNil)
			So(s.CountActive(ctx), ShouldEqual, 2)
		})

		Convey("And once the assignment completes the pair frees up", func() {
			_, err := s.Complete(ctx, "a1", 4, "ok")
			So(err, ShouldBeNil)
			So(s.HasActive(ctx, "e1", "v1"), ShouldBeFalse)
			So(s.Create(ctx, newAssignment("a3", "e1", "v1")), ShouldBeNil)
		})
	})
}

func TestMemoryAssignmentStore_CompleteRaces(t *testing.T) {
	Convey("Given an active assignment", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryAssignmentStore()
		So(s.Create(ctx, newAssignment("a1", "e1", "v1")), ShouldBeNil)

		Convey("When it completes normally", func() {
			a, err := s.Complete(ctx, "a1", 4.5, "solid work")
			So(err, ShouldBeNil)
			So(a.Status, ShouldEqual, model.AssignmentCompleted)
			So(*a.Score, ShouldEqual, 4.5)

			Convey("Then completing again reports the completed race loss", func() {
				_, err := s.Complete(ctx, "a1", 3, "")
				So(err, ShouldEqual, repository.ErrAlreadyCompleted)
			})

			Convey("And the supervisor's expiry CAS loses quietly", func() {
				ok, err := s.CompareAndSwapStatus(ctx, "a1",
					[]model.AssignmentStatus{model.AssignmentPending, model.AssignmentInProgress},
					model.AssignmentExpired)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the supervisor expires it first", func() {
			ok, err := s.CompareAndSwapStatus(ctx, "a1",
				[]model.AssignmentStatus{model.AssignmentPending, model.AssignmentInProgress},
				model.AssignmentExpired)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			Convey("Then the validator's completion is rejected as expired", func() {
				_, err := s.Complete(ctx, "a1", 4, "")
				So(err, ShouldEqual, repository.ErrAlreadyExpired)
			})

			Convey("And the pair index no longer lists it", func() {
				So(s.HasActive(ctx, "e1", "v1"), ShouldBeFalse)
			})
		})

		Convey("When completion and expiry race concurrently", func() {
			var completed, expired int
			var mu sync.Mutex
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				if _, err := s.Complete(ctx, "a1", 4, ""); err == nil {
					mu.Lock()
					completed++
					mu.Unlock()
				}
			}()
			go func() {
				defer wg.Done()
				ok, _ := s.CompareAndSwapStatus(ctx, "a1",
					[]model.AssignmentStatus{model.AssignmentPending, model.AssignmentInProgress},
					model.AssignmentExpired)
				if ok {
					mu.Lock()
					expired++
					mu.Unlock()
				}
			}()
			wg.Wait()

			Convey("Then exactly one side wins", func() {
				So(completed+expired, ShouldEqual, 1)
			})
		})
	})
}

func TestMemoryAssignmentStore_MarkReleased(t *testing.T) {
	Convey("Given an assignment", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryAssignmentStore()
		So(s.Create(ctx, newAssignment("a1", "e1", "v1")), ShouldBeNil)

		Convey("Then only the first release wins", func() {
			first, err := s.MarkReleased(ctx, "a1")
			So(err, ShouldBeNil)
			So(first, ShouldBeTrue)

			second, err := s.MarkReleased(ctx, "a1")
			So(err, ShouldBeNil)
			So(second, ShouldBeFalse)
		})
	})
}

func TestMemoryAssignmentStore_ActiveByEvidence(t *testing.T) {
	Convey("Given assignments across evidence items", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryAssignmentStore()
		So(s.Create(ctx, newAssignment("a1", "e1", "v1")), ShouldBeNil)
		So(s.Create(ctx, newAssignment("a2", "e1", "v2")), ShouldBeNil)
		So(s.Create(ctx, newAssignment("a3", "e2", "v1")), ShouldBeNil)

		Convey("Then only the evidence's active assignments are listed", func() {
			out := s.ActiveByEvidence(ctx, "e1")
			So(len(out), ShouldEqual, 2)
		})
	})
}
