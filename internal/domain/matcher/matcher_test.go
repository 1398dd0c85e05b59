package matcher_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/questline/verity/internal/adapters/repository"
	"github.com/questline/verity/internal/domain/matcher"
	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/internal/domain/registry"
	"github.com/questline/verity/internal/domain/workload"
	"github.com/questline/verity/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var testSLAs = map[model.Policy]model.ValidationSLA{
	model.PolicyPeer:      {AppliesTo: model.PolicyPeer, ResponseTimeMinutes: 60, WarningLeadMinutes: 10},
	model.PolicyModerator: {AppliesTo: model.PolicyModerator, ResponseTimeMinutes: 30, WarningLeadMinutes: 5},
}

type fixture struct {
	reg   *registry.InMemoryRegistry
	slots *workload.InMemoryTracker
	store *repository.MemoryAssignmentStore
	m     *matcher.Matcher
}

func newFixture(opts ...matcher.Option) *fixture {
	f := &fixture{
		reg:   registry.NewInMemoryRegistry(),
		slots: workload.NewInMemoryTracker(),
		store: repository.NewMemoryAssignmentStore(),
	}
	base := []matcher.Option{
		matcher.WithJitter(0),
		matcher.WithRand(rand.New(rand.NewSource(1))),
	}
	f.m = matcher.New(f.reg, f.slots, f.store, testSLAs, append(base, opts...)...)
	return f
}

func (f *fixture) addValidator(id, userID string, rating float64, capacity int, moderator bool, specialties ...string) {
	set := make(map[string]struct{})
	for _, s := range specialties {
		set[s] = struct{}{}
	}
	p := model.ValidatorProfile{
		ID:                       id,
		UserID:                   userID,
		Specialties:              set,
		MaxConcurrentAssignments: capacity,
		Available:                true,
		Rating:                   rating,
		Moderator:                moderator,
	}
	if err := f.reg.Register(context.Background(), p); err != nil {
		panic(err)
	}
	f.slots.Track(id, capacity)
}

func peerEvidence(id, submitter string, required int) model.Evidence {
	return model.Evidence{
		ID:                      id,
		SubmitterID:             submitter,
		ChallengeID:             "c1",
		Specialty:               "fitness",
		Policy:                  model.PolicyPeer,
		Status:                  model.EvidencePending,
		RequiredValidationCount: required,
	}
}

func TestMatcher_AssignPeer(t *testing.T) {
	Convey("Given a pool with enough validators", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.addValidator("v1", "u1", 4.5, 3, false, "fitness")
		f.addValidator("v2", "u2", 4.0, 3, false, "fitness")
		f.addValidator("v3", "u3", 3.5, 3, false, "fitness")
		f.addValidator("v4", "u4", 3.0, 3, false, "fitness")

		Convey("When assigning peer evidence requiring three validators", func() {
			res, err := f.m.Assign(ctx, peerEvidence("e1", "submitter", 3))

			Convey("Then three distinct validators are reserved", func() {
				So(err, ShouldBeNil)
				So(res.Exhausted, ShouldBeFalse)
				So(len(res.Assignments), ShouldEqual, 3)

				seen := map[string]bool{}
				for _, a := range res.Assignments {
					So(seen[a.ValidatorID], ShouldBeFalse)
					seen[a.ValidatorID] = true
					So(a.Status, ShouldEqual, model.AssignmentPending)
					So(a.DueAt.Sub(a.AssignedAt), ShouldEqual, time.Hour)

					cur, _, _ := f.slots.Load(a.ValidatorID)
					So(cur, ShouldEqual, 1)
				}
			})
		})

		Convey("When ranking is deterministic, the best rated win", func() {
			res, err := f.m.Assign(ctx, peerEvidence("e1", "submitter", 3))
			So(err, ShouldBeNil)

			ids := map[string]bool{}
			for _, a := range res.Assignments {
				ids[a.ValidatorID] = true
			}
			So(ids["v1"], ShouldBeTrue)
			So(ids["v2"], ShouldBeTrue)
			So(ids["v3"], ShouldBeTrue)
			So(ids["v4"], ShouldBeFalse)
		})
	})
}

func TestMatcher_PoolExhaustion(t *testing.T) {
	Convey("Given only two eligible validators for a quorum of three", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.addValidator("v1", "u1", 4.5, 3, false, "fitness")
		f.addValidator("v2", "u2", 4.0, 3, false, "fitness")

		res, err := f.m.Assign(ctx, peerEvidence("e1", "submitter", 3))

		Convey("Then the round reports exhaustion but keeps both reservations", func() {
			So(err, ShouldBeNil)
			So(res.Exhausted, ShouldBeTrue)
			So(len(res.Assignments), ShouldEqual, 2)
			So(f.store.CountActive(ctx), ShouldEqual, 2)

			for _, a := range res.Assignments {
				cur, _, _ := f.slots.Load(a.ValidatorID)
				So(cur, ShouldEqual, 1)
			}
		})
	})
}

func TestMatcher_CapacitySkip(t *testing.T) {
	Convey("Given the best candidate is at capacity", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.addValidator("v1", "u1", 5.0, 1, false, "fitness")
		f.addValidator("v2", "u2", 2.0, 3, false, "fitness")

		// Fill v1's only slot.
		So(f.slots.TryReserve("v1"), ShouldBeTrue)

		res, err := f.m.Assign(ctx, peerEvidence("e1", "submitter", 1))

		Convey("Then the matcher skips it and reserves the next candidate", func() {
			So(err, ShouldBeNil)
			So(res.Exhausted, ShouldBeFalse)
			So(len(res.Assignments), ShouldEqual, 1)
			So(res.Assignments[0].ValidatorID, ShouldEqual, "v2")
		})
	})
}

func TestMatcher_SubmitterNeverAssigned(t *testing.T) {
	Convey("Given generated evidence/validator pairs sharing a user id", t, func() {
		ctx := context.Background()
		f := newFixture()
		for i := 0; i < 8; i++ {
			f.addValidator(fmt.Sprintf("v%d", i), fmt.Sprintf("u%d", i), 3+float64(i%3), 5, false, "fitness")
		}

		Convey("Then no validator ever reviews their own evidence", func() {
			for i := 0; i < 8; i++ {
				ev := peerEvidence(fmt.Sprintf("e%d", i), fmt.Sprintf("u%d", i), 3)
				res, err := f.m.Assign(ctx, ev)
				So(err, ShouldBeNil)
				for _, a := range res.Assignments {
					So(a.ValidatorID, ShouldNotEqual, fmt.Sprintf("v%d", i))
				}
			}
		})
	})
}

func TestMatcher_ModeratorPolicy(t *testing.T) {
	Convey("Given a moderator pool", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.addValidator("v1", "u1", 5.0, 3, false, "fitness")
		f.addValidator("m1", "mu1", 4.0, 3, true)

		ev := peerEvidence("e1", "submitter", 1)
		ev.Policy = model.PolicyModerator

		res, err := f.m.Assign(ctx, ev)

		Convey("Then exactly one moderator is assigned", func() {
			So(err, ShouldBeNil)
			So(len(res.Assignments), ShouldEqual, 1)
			So(res.Assignments[0].ValidatorID, ShouldEqual, "m1")
			So(res.Assignments[0].DueAt.Sub(res.Assignments[0].AssignedAt), ShouldEqual, 30*time.Minute)
		})
	})

	Convey("Given an automatic policy", t, func() {
		ctx := context.Background()
		f := newFixture()

		ev := peerEvidence("e1", "submitter", 1)
		ev.Policy = model.PolicyAutomatic

		_, err := f.m.Assign(ctx, ev)

		Convey("Then the matcher refuses to create human assignments", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMatcher_AssignReplacement(t *testing.T) {
	Convey("Given evidence with one expired validator", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.addValidator("v1", "u1", 4.5, 3, false, "fitness")
		f.addValidator("v2", "u2", 4.0, 3, false, "fitness")
		f.addValidator("m1", "mu1", 4.0, 3, true)

		ev := peerEvidence("e1", "submitter", 1)
		res, err := f.m.Assign(ctx, ev)
		So(err, ShouldBeNil)
		So(res.Assignments[0].ValidatorID, ShouldEqual, "v1")

		Convey("When replacing from the normal pool", func() {
			// v1 still holds an active assignment for e1, so the
			// replacement must go elsewhere.
			a, err := f.m.AssignReplacement(ctx, ev, false)
			So(err, ShouldBeNil)
			So(a.ValidatorID, ShouldEqual, "v2")
		})

		Convey("When replacing with escalation", func() {
			a, err := f.m.AssignReplacement(ctx, ev, true)
			So(err, ShouldBeNil)
			So(a.ValidatorID, ShouldEqual, "m1")
		})

		Convey("When nobody is left", func() {
			f.slots.Track("v2", 0)
			_, err := f.m.AssignReplacement(ctx, ev, false)
			So(err, ShouldEqual, matcher.ErrValidatorUnavailable)
		})
	})
}
