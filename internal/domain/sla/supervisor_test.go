package sla_test

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/questline/verity/internal/adapters/repository"
	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/internal/domain/sla"
	"github.com/questline/verity/internal/domain/workload"
	"github.com/questline/verity/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.SLANotification
}

func (r *recordingNotifier) Notify(_ context.Context, n model.SLANotification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recordingNotifier) ofKind(k model.NotificationKind) []model.SLANotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SLANotification
	for _, n := range r.events {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

type replaceCall struct {
	evidenceID string
	escalate   bool
}

type fakeReplacer struct {
	mu      sync.Mutex
	calls   []replaceCall
	flagged []string
	created bool
	err     error
}

func (f *fakeReplacer) ReplaceAssignment(_ context.Context, evidenceID string, escalate bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, replaceCall{evidenceID: evidenceID, escalate: escalate})
	return f.created, f.err
}

func (f *fakeReplacer) FlagEscalationExhausted(_ context.Context, evidenceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagged = append(f.flagged, evidenceID)
	return nil
}

type fixture struct {
	store    *repository.MemoryAssignmentStore
	slots    *workload.InMemoryTracker
	notifier *recordingNotifier
	replacer *fakeReplacer
	clock    *fakeClock
	sup      *sla.Supervisor
}

func newFixture(opts ...sla.Option) *fixture {
	f := &fixture{
		store:    repository.NewMemoryAssignmentStore(),
		slots:    workload.NewInMemoryTracker(),
		notifier: &recordingNotifier{},
		replacer: &fakeReplacer{created: true},
		clock:    &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	opts = append([]sla.Option{sla.WithClock(f.clock.Now)}, opts...)
	f.sup = sla.New(f.store, f.slots, f.notifier, f.replacer, opts...)
	return f
}

// seed creates one active assignment with a reserved slot and registers
// its deadline entry.
func (f *fixture) seed(ctx context.Context, evidenceID, validatorID string, due, lead time.Duration) model.Assignment {
	a := model.Assignment{
		ID:          model.NewID(),
		EvidenceID:  evidenceID,
		ValidatorID: validatorID,
		AssignedAt:  f.clock.Now(),
		DueAt:       f.clock.Now().Add(due),
		Status:      model.AssignmentPending,
	}
	if err := f.store.Create(ctx, a); err != nil {
		panic(err)
	}
	f.slots.Track(validatorID, 3)
	if !f.slots.TryReserve(validatorID) {
		panic("reserve failed")
	}
	if err := f.sup.Track(sla.Entry{
		AssignmentID: a.ID,
		EvidenceID:   a.EvidenceID,
		ValidatorID:  a.ValidatorID,
		DueAt:        a.DueAt,
		WarningLead:  lead,
	}); err != nil {
		panic(err)
	}
	return a
}

func TestSupervisorWarnings(t *testing.T) {
	ctx := context.Background()

	Convey("Given a tracked assignment with a warning lead", t, func() {
		f := newFixture()
		a := f.seed(ctx, "ev-1", "val-1", time.Hour, 10*time.Minute)

		Convey("Sweeping before the warning window emits nothing", func() {
			f.sup.Sweep(ctx)
			So(f.notifier.events, ShouldBeEmpty)
		})

		Convey("Sweeping inside the warning window emits one WARNING", func() {
			f.clock.Advance(51 * time.Minute)
			f.sup.Sweep(ctx)

			warnings := f.notifier.ofKind(model.NotificationWarning)
			So(warnings, ShouldHaveLength, 1)
			So(warnings[0].AssignmentID, ShouldEqual, a.ID)

			Convey("And repeat sweeps never warn twice", func() {
				f.clock.Advance(time.Minute)
				f.sup.Sweep(ctx)
				f.sup.Sweep(ctx)
				So(f.notifier.ofKind(model.NotificationWarning), ShouldHaveLength, 1)
			})

			Convey("And the assignment is still active", func() {
				got, err := f.store.Get(ctx, a.ID)
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.AssignmentPending)
			})
		})
	})
}

func TestSupervisorBreach(t *testing.T) {
	ctx := context.Background()

	Convey("Given a tracked assignment past its deadline", t, func() {
		f := newFixture()
		a := f.seed(ctx, "ev-1", "val-1", time.Hour, 10*time.Minute)
		f.clock.Advance(61 * time.Minute)

		Convey("A sweep expires it, releases the slot and notifies", func() {
			f.sup.Sweep(ctx)

			So(f.notifier.ofKind(model.NotificationBreach), ShouldHaveLength, 1)

			cur, _, ok := f.slots.Load("val-1")
			So(ok, ShouldBeTrue)
			So(cur, ShouldEqual, 0)

			Convey("And a replacement from the normal pool was requested", func() {
				So(f.replacer.calls, ShouldHaveLength, 1)
				So(f.replacer.calls[0].evidenceID, ShouldEqual, "ev-1")
				So(f.replacer.calls[0].escalate, ShouldBeFalse)
			})

			Convey("And the expired assignment records the chain", func() {
				got, err := f.store.Get(ctx, a.ID)
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.AssignmentReassigned)
				So(got.Released, ShouldBeTrue)
			})
		})

		Convey("When the replacement is no longer needed", func() {
			f.replacer.created = false
			f.sup.Sweep(ctx)

			Convey("The assignment stays EXPIRED and nothing is flagged", func() {
				got, err := f.store.Get(ctx, a.ID)
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.AssignmentExpired)
				So(f.replacer.flagged, ShouldBeEmpty)
			})
		})
	})

	Convey("Given an assignment the validator completed in time", t, func() {
		f := newFixture()
		a := f.seed(ctx, "ev-1", "val-1", time.Hour, 0)
		_, err := f.store.Complete(ctx, a.ID, 4.0, "solid")
		So(err, ShouldBeNil)

		Convey("A late sweep is a no-op", func() {
			f.clock.Advance(2 * time.Hour)
			f.sup.Sweep(ctx)

			So(f.notifier.events, ShouldBeEmpty)
			So(f.replacer.calls, ShouldBeEmpty)

			got, _ := f.store.Get(ctx, a.ID)
			So(got.Status, ShouldEqual, model.AssignmentCompleted)
		})
	})
}

func TestSupervisorEscalation(t *testing.T) {
	ctx := context.Background()

	Convey("Given evidence whose first replacement also expires", t, func() {
		f := newFixture()
		f.seed(ctx, "ev-1", "val-1", time.Hour, 0)
		f.clock.Advance(61 * time.Minute)
		f.sup.Sweep(ctx)

		f.seed(ctx, "ev-1", "val-2", time.Hour, 0)
		f.clock.Advance(61 * time.Minute)
		f.sup.Sweep(ctx)

		Convey("The second replacement draws from the escalation pool", func() {
			So(f.replacer.calls, ShouldHaveLength, 2)
			So(f.replacer.calls[0].escalate, ShouldBeFalse)
			So(f.replacer.calls[1].escalate, ShouldBeTrue)
		})
	})

	Convey("Given a supervisor with escalation depth 1", t, func() {
		f := newFixture(sla.WithMaxEscalationDepth(1))
		f.seed(ctx, "ev-1", "val-1", time.Hour, 0)
		f.clock.Advance(61 * time.Minute)
		f.sup.Sweep(ctx)

		f.seed(ctx, "ev-1", "val-2", time.Hour, 0)
		f.clock.Advance(61 * time.Minute)
		f.sup.Sweep(ctx)

		Convey("The second breach flags the evidence instead of replacing", func() {
			So(f.replacer.calls, ShouldHaveLength, 1)
			So(f.replacer.flagged, ShouldResemble, []string{"ev-1"})
		})
	})
}

func TestSupervisorCancellation(t *testing.T) {
	ctx := context.Background()

	Convey("Given cancelled evidence with pending timers", t, func() {
		f := newFixture()
		a := f.seed(ctx, "ev-1", "val-1", time.Hour, 10*time.Minute)
		f.sup.CancelEvidence("ev-1")

		Convey("Sweeps past the deadline do nothing", func() {
			f.clock.Advance(2 * time.Hour)
			f.sup.Sweep(ctx)

			So(f.notifier.events, ShouldBeEmpty)
			So(f.replacer.calls, ShouldBeEmpty)

			got, _ := f.store.Get(ctx, a.ID)
			So(got.Status, ShouldEqual, model.AssignmentPending)
		})

		Convey("Cancelling again is harmless", func() {
			So(func() { f.sup.CancelEvidence("ev-1") }, ShouldNotPanic)
		})
	})
}

func TestSupervisorLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started supervisor", t, func() {
		f := newFixture(sla.WithInterval(10 * time.Millisecond))
		f.sup.Start(ctx)

		Convey("Stop terminates the loop and refuses new timers", func() {
			f.sup.Stop()
			err := f.sup.Track(sla.Entry{AssignmentID: "a", EvidenceID: "e", DueAt: f.clock.Now()})
			So(err, ShouldEqual, sla.ErrStopped)

			Convey("And stopping twice is safe", func() {
				So(f.sup.Stop, ShouldNotPanic)
			})
		})
	})
}
