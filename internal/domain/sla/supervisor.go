// Package sla tracks assignment deadlines and drives warning, expiry and
// reassignment when validators run out of time.
//
// Deadlines live in a min-heap keyed by wake-up time; a single periodic
// sweep loop pops everything due. Expiry races against validator
// completion through the assignment store's compare-and-swap, so
// whichever side wins, the loser's transition is a no-op.
package sla

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/pkg/logger"
	"github.com/questline/verity/pkg/metrics"
)

// Default supervisor configuration constants.
const (
	defaultSweepInterval      = time.Minute
	defaultMaxEscalationDepth = 3
)

// Entry is one tracked assignment deadline.
type Entry struct {
	AssignmentID string
	EvidenceID   string
	ValidatorID  string
	DueAt        time.Time
	WarningLead  time.Duration
}

// Assignments is the slice of the assignment store the supervisor needs.
type Assignments interface {
	CompareAndSwapStatus(ctx context.Context, id string, from []model.AssignmentStatus, to model.AssignmentStatus) (bool, error)
	MarkReleased(ctx context.Context, id string) (bool, error)
}

// Releaser returns reserved workload slots; implemented by the tracker.
type Releaser interface {
	Release(validatorID string)
}

// Notifier receives SLA notification triggers.
type Notifier interface {
	Notify(ctx context.Context, n model.SLANotification)
}

// Replacer handles the post-breach recovery path; implemented by the
// lifecycle controller.
type Replacer interface {
	// ReplaceAssignment creates one replacement assignment, from the
	// escalation pool when escalate is set. It returns false without
	// error when the evidence no longer needs a replacement.
	ReplaceAssignment(ctx context.Context, evidenceID string, escalate bool) (bool, error)

	// FlagEscalationExhausted permanently flags evidence whose breaches
	// exceeded the escalation depth or whose pools are empty.
	FlagEscalationExhausted(ctx context.Context, evidenceID string) error
}

// Penalizer applies the optional expiry rating penalty.
type Penalizer interface {
	RecordExpiry(ctx context.Context, validatorID string) error
}

// Supervisor owns every non-terminal assignment's deadline entry.
type Supervisor struct {
	assignments Assignments
	slots       Releaser
	notifier    Notifier
	replacer    Replacer
	penalizer   Penalizer

	interval           time.Duration
	maxEscalationDepth int
	now                func() time.Time

	mu        sync.Mutex
	timers    timerHeap
	warned    map[string]struct{} // assignment ids already warned
	cancelled map[string]struct{} // evidence ids with timers withdrawn
	expiries  map[string]int      // evidence id -> breach count
	started   bool
	stopped   bool

	stopCh chan struct{}
	done   chan struct{}

	logger logger.Logger
}

// New creates a Supervisor with configuration options.
func New(assignments Assignments, slots Releaser, notifier Notifier, replacer Replacer, opts ...Option) *Supervisor {
	s := &Supervisor{
		assignments:        assignments,
		slots:              slots,
		notifier:           notifier,
		replacer:           replacer,
		interval:           defaultSweepInterval,
		maxEscalationDepth: defaultMaxEscalationDepth,
		now:                time.Now,
		warned:             make(map[string]struct{}),
		cancelled:          make(map[string]struct{}),
		expiries:           make(map[string]int),
		stopCh:             make(chan struct{}),
		done:               make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("sla")
	}

	return s
}

// Track registers one assignment deadline. Warning entries are only
// scheduled when the SLA carries a warning lead.
func (s *Supervisor) Track(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	delete(s.cancelled, e.EvidenceID)

	it := item{at: e.DueAt, stage: stageDue, entry: e}
	if e.WarningLead > 0 {
		it = item{at: e.DueAt.Add(-e.WarningLead), stage: stageWarn, entry: e}
	}
	heap.Push(&s.timers, it)
	metrics.UpdateTrackedTimers(s.timers.Len())
	return nil
}

// CancelEvidence withdraws all timer entries for an evidence item.
// Entries are dropped lazily when they surface; calling this for unknown
// or already-cancelled evidence is a no-op.
func (s *Supervisor) CancelEvidence(evidenceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled[evidenceID] = struct{}{}
	delete(s.expiries, evidenceID)
}

// Start launches the periodic sweep loop.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop terminates the sweep loop and refuses further tracking.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	close(s.stopCh)
	if started {
		<-s.done
	}
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep processes every entry whose wake-up time has passed. It is
// invoked by the loop each interval and directly by tests.
func (s *Supervisor) Sweep(ctx context.Context) {
	start := s.now()
	defer func() {
		metrics.RecordSweepDuration(float64(s.now().Sub(start).Milliseconds()))
	}()

	for {
		it, ok := s.popDue(start)
		if !ok {
			return
		}
		switch it.stage {
		case stageWarn:
			s.handleWarning(ctx, it.entry)
		case stageDue:
			s.handleDeadline(ctx, it.entry)
		}
	}
}

// popDue pops the earliest item if it is due, re-arming the heap gauge.
func (s *Supervisor) popDue(now time.Time) (item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.timers.Len() > 0 {
		top := s.timers[0]
		if top.at.After(now) {
			return item{}, false
		}
		it := heap.Pop(&s.timers).(item)
		metrics.UpdateTrackedTimers(s.timers.Len())

		if _, gone := s.cancelled[it.entry.EvidenceID]; gone {
			delete(s.warned, it.entry.AssignmentID)
			continue
		}
		return it, true
	}
	return item{}, false
}

// handleWarning emits one WARNING per assignment and re-queues the
// deadline entry.
func (s *Supervisor) handleWarning(ctx context.Context, e Entry) {
	s.mu.Lock()
	_, already := s.warned[e.AssignmentID]
	if !already {
		s.warned[e.AssignmentID] = struct{}{}
	}
	heap.Push(&s.timers, item{at: e.DueAt, stage: stageDue, entry: e})
	metrics.UpdateTrackedTimers(s.timers.Len())
	s.mu.Unlock()

	if already {
		return
	}

	s.notifier.Notify(ctx, model.SLANotification{
		AssignmentID: e.AssignmentID,
		Kind:         model.NotificationWarning,
		TriggeredAt:  s.now(),
	})
	metrics.RecordSLAWarning()
	s.logger.Warn(ctx, "assignment approaching SLA deadline",
		logger.String("assignment", e.AssignmentID),
		logger.String("validator", e.ValidatorID),
	)
}

// handleDeadline attempts the expiry transition and, on winning the race
// against completion, releases the slot and drives recovery.
func (s *Supervisor) handleDeadline(ctx context.Context, e Entry) {
	defer func() {
		s.mu.Lock()
		delete(s.warned, e.AssignmentID)
		s.mu.Unlock()
	}()

	won, err := s.assignments.CompareAndSwapStatus(ctx, e.AssignmentID,
		[]model.AssignmentStatus{model.AssignmentPending, model.AssignmentInProgress},
		model.AssignmentExpired)
	if err != nil {
		s.logger.Error(ctx, "expiry transition failed", logger.Error(err),
			logger.String("assignment", e.AssignmentID))
		return
	}
	if !won {
		// The validator completed (or the evidence was cancelled) first.
		return
	}

	metrics.RecordAssignmentExpired()
	if first, err := s.assignments.MarkReleased(ctx, e.AssignmentID); err == nil && first {
		s.slots.Release(e.ValidatorID)
	}
	if s.penalizer != nil {
		if err := s.penalizer.RecordExpiry(ctx, e.ValidatorID); err != nil {
			s.logger.Warn(ctx, "expiry penalty failed", logger.Error(err))
		}
	}

	s.notifier.Notify(ctx, model.SLANotification{
		AssignmentID: e.AssignmentID,
		Kind:         model.NotificationBreach,
		TriggeredAt:  s.now(),
	})
	metrics.RecordSLABreach()

	s.recover(ctx, e)
}

// recover creates the replacement assignment or flags the evidence.
// Exactly one of the two happens per breach.
func (s *Supervisor) recover(ctx context.Context, e Entry) {
	s.mu.Lock()
	s.expiries[e.EvidenceID]++
	n := s.expiries[e.EvidenceID]
	s.mu.Unlock()

	if n > s.maxEscalationDepth {
		s.flag(ctx, e.EvidenceID, "escalation depth exceeded")
		return
	}

	// The first expiry retries the normal pool; repeat expiries for the
	// same evidence go straight to the escalation pool.
	escalate := n >= 2
	created, err := s.replacer.ReplaceAssignment(ctx, e.EvidenceID, escalate)
	if err != nil {
		s.flag(ctx, e.EvidenceID, "replacement failed")
		return
	}
	if !created {
		// Evidence reached a terminal state in the meantime; nothing to do.
		return
	}

	metrics.RecordReassignment()
	if escalate {
		metrics.RecordEscalation()
	}

	// Record the reassignment chain on the expired assignment.
	if _, err := s.assignments.CompareAndSwapStatus(ctx, e.AssignmentID,
		[]model.AssignmentStatus{model.AssignmentExpired}, model.AssignmentReassigned); err != nil {
		s.logger.Warn(ctx, "reassignment chain update failed", logger.Error(err))
	}

	s.logger.Info(ctx, "assignment replaced after SLA breach",
		logger.String("evidence", e.EvidenceID),
		logger.String("expired_assignment", e.AssignmentID),
		logger.Bool("escalated", escalate),
		logger.Int("breaches", n),
	)
}

func (s *Supervisor) flag(ctx context.Context, evidenceID, reason string) {
	if err := s.replacer.FlagEscalationExhausted(ctx, evidenceID); err != nil {
		s.logger.Error(ctx, "escalation flagging failed", logger.Error(err),
			logger.String("evidence", evidenceID))
		return
	}
	metrics.RecordEscalation()
	s.logger.Warn(ctx, "evidence flagged for manual resolution",
		logger.String("evidence", evidenceID),
		logger.String("reason", reason),
	)
}
