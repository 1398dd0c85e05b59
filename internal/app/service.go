// Package service provides the evidence lifecycle controller that
// implements the dependencies required by the HTTP API.
//
// The controller owns the evidence state machine. Every transition goes
// through the stores' compare-and-swap primitives, so the validator
// completion path and the deadline expiry path can race freely with
// exactly one winner per transition.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/questline/verity/internal/adapters/notify"
	"github.com/questline/verity/internal/adapters/repository"
	"github.com/questline/verity/internal/domain/autoscore"
	"github.com/questline/verity/internal/domain/consensus"
	"github.com/questline/verity/internal/domain/dedupe"
	"github.com/questline/verity/internal/domain/matcher"
	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/internal/domain/registry"
	"github.com/questline/verity/internal/domain/sla"
	"github.com/questline/verity/internal/domain/workload"
	"github.com/questline/verity/pkg/logger"
	"github.com/questline/verity/pkg/metrics"
)

// Default lifecycle configuration constants.
const (
	defaultRequiredValidations = 3
	automaticValidatorID       = "automatic"
)

// defaultSLAs returns the per-policy deadline configuration used when no
// override is supplied.
func defaultSLAs() map[model.Policy]model.ValidationSLA {
	return map[model.Policy]model.ValidationSLA{
		model.PolicyPeer: {
			ID:                  "sla-peer",
			AppliesTo:           model.PolicyPeer,
			ResponseTimeMinutes: 60,
			WarningLeadMinutes:  10,
		},
		model.PolicyModerator: {
			ID:                  "sla-moderator",
			AppliesTo:           model.PolicyModerator,
			ResponseTimeMinutes: 30,
			WarningLeadMinutes:  5,
		},
	}
}

// Submission is the external request to validate a piece of evidence.
type Submission struct {
	SubmitterID             string
	ChallengeID             string
	Specialty               string
	Policy                  model.Policy
	RequiredValidationCount int
}

// Handle identifies accepted evidence and its initial assignments.
type Handle struct {
	EvidenceID  string
	Status      model.EvidenceStatus
	Assignments []model.Assignment
}

// Decision reports the effect of one completed assignment.
type Decision struct {
	EvidenceID string
	// Decided is set when this completion produced the quorum decision.
	Decided    bool
	Status     model.EvidenceStatus
	FinalScore float64
	Reason     string
}

// Service implements the evidence lifecycle state machine.
type Service struct {
	mu sync.RWMutex

	// Core components
	evidence    repository.EvidenceStore
	assignments repository.AssignmentStore
	registry    registry.Registry
	slots       workload.Tracker
	matcher     *matcher.Matcher
	resolver    *consensus.Resolver
	supervisor  *sla.Supervisor
	notifier    notify.Notifier
	scorer      autoscore.Scorer
	dupes       dedupe.Tracker

	// Configuration
	requiredValidations int
	slas                map[model.Policy]model.ValidationSLA
	matcherOpts         []matcher.Option
	resolverOpts        []consensus.Option
	registryOpts        []registry.Option
	sweepInterval       time.Duration
	maxEscalationDepth  int
	expiryPenalty       *float64
	now                 func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRequiredValidations sets the default peer-policy quorum size.
func WithRequiredValidations(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.requiredValidations = n
		}
	}
}

// WithSLAs overrides the per-policy deadline configuration.
func WithSLAs(slas map[model.Policy]model.ValidationSLA) Option {
	return func(s *Service) {
		if len(slas) > 0 {
			s.slas = slas
		}
	}
}

// WithMatcherOptions forwards options to the assignment matcher.
func WithMatcherOptions(opts ...matcher.Option) Option {
	return func(s *Service) {
		s.matcherOpts = append(s.matcherOpts, opts...)
	}
}

// WithResolverOptions forwards options to the consensus resolver.
func WithResolverOptions(opts ...consensus.Option) Option {
	return func(s *Service) {
		s.resolverOpts = append(s.resolverOpts, opts...)
	}
}

// WithSweepInterval sets the deadline sweep period.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithMaxEscalationDepth bounds SLA-breach replacements per evidence.
func WithMaxEscalationDepth(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxEscalationDepth = n
		}
	}
}

// WithExpiryPenalty feeds the given rating sample to validators whose
// assignments expire.
func WithExpiryPenalty(sample float64) Option {
	return func(s *Service) {
		s.expiryPenalty = &sample
	}
}

// WithAutoScorer overrides the automatic-policy scorer.
func WithAutoScorer(sc autoscore.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithNotifier overrides the SLA notification collaborator.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the time source for every component.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		requiredValidations: defaultRequiredValidations,
		slas:                defaultSLAs(),
		sweepInterval:       time.Minute,
		maxEscalationDepth:  3,
		now:                 time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting validation service...")

	s.evidence = repository.NewMemoryEvidenceStore(repository.WithEvidenceClock(s.now))
	s.assignments = repository.NewMemoryAssignmentStore()
	s.slots = workload.NewInMemoryTracker()

	regOpts := append([]registry.Option{registry.WithClock(s.now)}, s.registryOpts...)
	if s.expiryPenalty != nil {
		regOpts = append(regOpts, registry.WithExpiryPenalty(*s.expiryPenalty))
	}
	s.registry = registry.NewInMemoryRegistry(regOpts...)

	matcherOpts := append([]matcher.Option{matcher.WithClock(s.now)}, s.matcherOpts...)
	s.matcher = matcher.New(s.registry, s.slots, s.assignments, s.slas, matcherOpts...)

	s.resolver = consensus.New(s.resolverOpts...)

	s.dupes = dedupe.NewInMemoryTracker()

	if s.scorer == nil {
		s.scorer = autoscore.NewInMemoryScorer(
			autoscore.WithDefaultBaseline(s.resolver.AutoApproveScore()),
		)
	}

	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier()
	}

	s.supervisor = sla.New(s.assignments, s.slots, s.notifier, s,
		sla.WithInterval(s.sweepInterval),
		sla.WithMaxEscalationDepth(s.maxEscalationDepth),
		sla.WithPenalizer(s.registry),
		sla.WithClock(s.now),
	)
	s.supervisor.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "validation service started",
		logger.Duration("sweepInterval", s.sweepInterval),
		logger.Int("maxEscalationDepth", s.maxEscalationDepth),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping validation service...")

	if s.supervisor != nil {
		s.supervisor.Stop()
	}
	if closer, ok := s.notifier.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "validation service stopped")
}

// RegisterValidator adds a validator to the pool and tracks its capacity.
func (s *Service) RegisterValidator(ctx context.Context, p model.ValidatorProfile) error {
	if err := s.registry.Register(ctx, p); err != nil {
		return err
	}
	s.slots.Track(p.ID, p.MaxConcurrentAssignments)
	metrics.UpdateValidatorPoolSize(s.registry.Count(ctx))
	return nil
}

// SetValidatorAvailability toggles a validator in and out of the pool.
func (s *Service) SetValidatorAvailability(ctx context.Context, validatorID string, available bool) error {
	return s.registry.SetAvailability(ctx, validatorID, available)
}

// RateValidator feeds one rating sample into the validator's running
// average.
func (s *Service) RateValidator(ctx context.Context, validatorID string, sample float64) error {
	return s.registry.RecordRating(ctx, validatorID, sample)
}

// Submit accepts evidence and dispatches it per its validation policy.
func (s *Service) Submit(ctx context.Context, sub Submission) (Handle, error) {
	required := sub.RequiredValidationCount
	switch sub.Policy {
	case model.PolicyPeer:
		if required <= 0 {
			required = s.requiredValidations
		}
	case model.PolicyModerator, model.PolicyAutomatic:
		required = 1
	case model.PolicyNone:
		required = 0
	default:
		return Handle{}, fmt.Errorf("%w: %s", ErrUnknownPolicy, sub.Policy)
	}

	fp := dedupe.Fingerprint(sub.SubmitterID, sub.ChallengeID)
	if !s.dupes.Claim(ctx, fp) {
		return Handle{}, fmt.Errorf("%w: challenge %s", ErrDuplicateSubmission, sub.ChallengeID)
	}

	ev := model.Evidence{
		ID:                      model.NewID(),
		SubmitterID:             sub.SubmitterID,
		ChallengeID:             sub.ChallengeID,
		Specialty:               sub.Specialty,
		Policy:                  sub.Policy,
		Status:                  model.EvidencePending,
		RequiredValidationCount: required,
		SubmittedAt:             s.now(),
	}
	if err := s.evidence.Create(ctx, ev); err != nil {
		s.dupes.Release(ctx, fp)
		return Handle{}, err
	}
	metrics.RecordEvidenceSubmitted()

	switch sub.Policy {
	case model.PolicyNone:
		return s.approveUnvalidated(ctx, ev)
	case model.PolicyAutomatic:
		return s.approveAutomatic(ctx, ev)
	default:
		return s.assignValidators(ctx, ev)
	}
}

// approveUnvalidated settles evidence that needs no validation at all.
func (s *Service) approveUnvalidated(ctx context.Context, ev model.Evidence) (Handle, error) {
	if _, err := s.evidence.Decide(ctx, ev.ID, model.EvidenceApproved, 0); err != nil {
		return Handle{}, err
	}
	s.dupes.Release(ctx, dedupe.Fingerprint(ev.SubmitterID, ev.ChallengeID))
	metrics.RecordEvidenceDecided(string(model.EvidenceApproved))
	return Handle{EvidenceID: ev.ID, Status: model.EvidenceApproved}, nil
}

// approveAutomatic records the synthetic score and settles immediately.
func (s *Service) approveAutomatic(ctx context.Context, ev model.Evidence) (Handle, error) {
	res, err := s.scorer.Score(ctx, autoscore.Input{
		EvidenceID: ev.ID,
		Specialty:  ev.Specialty,
	})
	if err != nil {
		return Handle{}, err
	}

	sc := model.Score{
		ValidatorID: automaticValidatorID,
		Value:       res.Score,
		RecordedAt:  s.now(),
	}
	scores, _, err := s.evidence.AppendScore(ctx, ev.ID, sc)
	if err != nil {
		return Handle{}, err
	}

	outcome, _ := s.resolver.Resolve(model.PolicyAutomatic, scores, 1)
	if _, err := s.evidence.Decide(ctx, ev.ID, outcome.Status, outcome.FinalScore); err != nil {
		return Handle{}, err
	}
	s.dupes.Release(ctx, dedupe.Fingerprint(ev.SubmitterID, ev.ChallengeID))
	metrics.RecordEvidenceDecided(string(outcome.Status))
	return Handle{EvidenceID: ev.ID, Status: outcome.Status}, nil
}

// assignValidators runs the matching round for human validation policies.
func (s *Service) assignValidators(ctx context.Context, ev model.Evidence) (Handle, error) {
	res, err := s.matcher.Assign(ctx, ev)
	if err != nil {
		return Handle{}, err
	}

	slaCfg := s.slas[ev.Policy]
	for _, a := range res.Assignments {
		if err := s.track(a, slaCfg); err != nil {
			return Handle{}, err
		}
	}

	status := model.EvidenceInReview
	if res.Exhausted {
		// Partial reservations are kept; the deficit goes through the
		// escalation path.
		status = model.EvidenceFlagged
	}
	if _, err := s.evidence.CompareAndSwapStatus(ctx, ev.ID,
		[]model.EvidenceStatus{model.EvidencePending}, status); err != nil {
		return Handle{}, err
	}

	s.logger.Info(ctx, "evidence accepted for review",
		logger.String("evidence", ev.ID),
		logger.String("policy", string(ev.Policy)),
		logger.Int("assignments", len(res.Assignments)),
		logger.Bool("exhausted", res.Exhausted),
	)
	return Handle{EvidenceID: ev.ID, Status: status, Assignments: res.Assignments}, nil
}

// CompleteAssignment records a validator's verdict and, once quorum is
// reached, settles the evidence.
func (s *Service) CompleteAssignment(ctx context.Context, assignmentID string, score float64, feedback string) (*Decision, error) {
	if !s.resolver.ValidScore(score) {
		return nil, fmt.Errorf("%w: %.2f", ErrInvalidScore, score)
	}

	a, err := s.assignments.Complete(ctx, assignmentID, score, feedback)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExpired) {
			metrics.RecordLateCompletion()
			s.logger.Info(ctx, "late completion ignored",
				logger.String("assignment", assignmentID))
		}
		return nil, err
	}
	metrics.RecordAssignmentCompleted()

	if first, err := s.assignments.MarkReleased(ctx, a.ID); err == nil && first {
		s.slots.Release(a.ValidatorID)
	}

	sc := model.Score{
		ValidatorID: a.ValidatorID,
		Value:       score,
		Feedback:    feedback,
		RecordedAt:  s.now(),
	}
	scores, appended, err := s.evidence.AppendScore(ctx, a.EvidenceID, sc)
	if err != nil {
		if errors.Is(err, repository.ErrEvidenceTerminal) {
			// The evidence settled while this completion was in flight.
			metrics.RecordLateCompletion()
			s.logger.Info(ctx, "completion after decision, score discarded",
				logger.String("assignment", a.ID),
				logger.String("evidence", a.EvidenceID),
			)
			return &Decision{EvidenceID: a.EvidenceID}, nil
		}
		return nil, err
	}

	if !appended {
		// Quorum scores are already on record, so this verdict comes from
		// an escalated assignment and is authoritative on its own.
		return s.settle(ctx, a.EvidenceID, model.PolicyModerator, []model.Score{sc}, 1)
	}

	ev, err := s.evidence.Get(ctx, a.EvidenceID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, ev.ID, ev.Policy, scores, ev.RequiredValidationCount)
}

// settle runs the resolver and applies its outcome.
func (s *Service) settle(ctx context.Context, evidenceID string, policy model.Policy, scores []model.Score, quorum int) (*Decision, error) {
	outcome, decided := s.resolver.Resolve(policy, scores, quorum)
	if !decided {
		return &Decision{EvidenceID: evidenceID, Status: model.EvidenceInReview}, nil
	}
	metrics.RecordQuorumSize(len(scores))

	if outcome.Status == model.EvidenceFlagged {
		// Divergent scores; hold the evidence for moderator escalation.
		won, err := s.evidence.CompareAndSwapStatus(ctx, evidenceID,
			[]model.EvidenceStatus{model.EvidencePending, model.EvidenceInReview}, model.EvidenceFlagged)
		if err != nil {
			return nil, err
		}
		if won {
			s.supervisor.CancelEvidence(evidenceID)
			metrics.RecordEvidenceDecided(string(model.EvidenceFlagged))
			s.logger.Warn(ctx, "evidence flagged",
				logger.String("evidence", evidenceID),
				logger.String("reason", outcome.Reason),
			)
		}
		return &Decision{
			EvidenceID: evidenceID,
			Decided:    won,
			Status:     model.EvidenceFlagged,
			FinalScore: outcome.FinalScore,
			Reason:     outcome.Reason,
		}, nil
	}

	won, err := s.evidence.Decide(ctx, evidenceID, outcome.Status, outcome.FinalScore)
	if err != nil {
		return nil, err
	}
	if won {
		s.supervisor.CancelEvidence(evidenceID)
		s.cancelActiveAssignments(ctx, evidenceID)
		s.releaseClaim(ctx, evidenceID)
		metrics.RecordEvidenceDecided(string(outcome.Status))
		s.logger.Info(ctx, "evidence decided",
			logger.String("evidence", evidenceID),
			logger.String("status", string(outcome.Status)),
			logger.Float64("finalScore", outcome.FinalScore),
		)
	}
	return &Decision{
		EvidenceID: evidenceID,
		Decided:    won,
		Status:     outcome.Status,
		FinalScore: outcome.FinalScore,
		Reason:     outcome.Reason,
	}, nil
}

// releaseClaim frees the submission fingerprint of settled evidence.
func (s *Service) releaseClaim(ctx context.Context, evidenceID string) {
	ev, err := s.evidence.Get(ctx, evidenceID)
	if err != nil {
		return
	}
	s.dupes.Release(ctx, dedupe.Fingerprint(ev.SubmitterID, ev.ChallengeID))
}

// cancelActiveAssignments withdraws assignments that are no longer
// needed and returns their reserved slots.
func (s *Service) cancelActiveAssignments(ctx context.Context, evidenceID string) {
	for _, a := range s.assignments.ActiveByEvidence(ctx, evidenceID) {
		won, err := s.assignments.CompareAndSwapStatus(ctx, a.ID,
			[]model.AssignmentStatus{model.AssignmentPending, model.AssignmentInProgress},
			model.AssignmentCancelled)
		if err != nil || !won {
			continue
		}
		metrics.RecordAssignmentCancelled()
		if first, err := s.assignments.MarkReleased(ctx, a.ID); err == nil && first {
			s.slots.Release(a.ValidatorID)
		}
	}
}

// Cancel withdraws evidence from review. The evidence transition goes
// first; assignment cleanup is best-effort after the point of no return.
func (s *Service) Cancel(ctx context.Context, evidenceID string) error {
	won, err := s.evidence.CompareAndSwapStatus(ctx, evidenceID,
		[]model.EvidenceStatus{model.EvidencePending, model.EvidenceInReview, model.EvidenceFlagged},
		model.EvidenceCancelled)
	if err != nil {
		return err
	}
	if !won {
		return repository.ErrEvidenceTerminal
	}

	s.supervisor.CancelEvidence(evidenceID)
	s.cancelActiveAssignments(ctx, evidenceID)
	s.releaseClaim(ctx, evidenceID)
	metrics.RecordEvidenceCancelled()

	s.logger.Info(ctx, "evidence cancelled", logger.String("evidence", evidenceID))
	return nil
}

// Escalate re-enters flagged evidence into review with a moderator
// assignment.
func (s *Service) Escalate(ctx context.Context, evidenceID string) error {
	ev, err := s.evidence.Get(ctx, evidenceID)
	if err != nil {
		return err
	}

	won, err := s.evidence.CompareAndSwapStatus(ctx, evidenceID,
		[]model.EvidenceStatus{model.EvidenceFlagged}, model.EvidenceInReview)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("%w: %s", ErrNotFlagged, ev.Status)
	}

	a, err := s.matcher.AssignReplacement(ctx, ev, true)
	if err != nil {
		// No moderator available; put the evidence back in the pool.
		if _, cerr := s.evidence.CompareAndSwapStatus(ctx, evidenceID,
			[]model.EvidenceStatus{model.EvidenceInReview}, model.EvidenceFlagged); cerr != nil {
			return cerr
		}
		return err
	}

	if err := s.track(*a, s.slas[model.PolicyModerator]); err != nil {
		return err
	}
	metrics.RecordEscalation()

	s.logger.Info(ctx, "evidence escalated to moderator",
		logger.String("evidence", evidenceID),
		logger.String("assignment", a.ID),
		logger.String("moderator", a.ValidatorID),
	)
	return nil
}

// Status returns a snapshot of one evidence item.
func (s *Service) Status(ctx context.Context, evidenceID string) (model.Evidence, error) {
	return s.evidence.Get(ctx, evidenceID)
}

// Assignment returns a snapshot of one assignment.
func (s *Service) Assignment(ctx context.Context, assignmentID string) (model.Assignment, error) {
	return s.assignments.Get(ctx, assignmentID)
}

// ActiveAssignments lists the open assignments for one evidence item.
func (s *Service) ActiveAssignments(ctx context.Context, evidenceID string) []model.Assignment {
	return s.assignments.ActiveByEvidence(ctx, evidenceID)
}

// ValidatorWorkload reports a validator's current load and capacity.
func (s *Service) ValidatorWorkload(ctx context.Context, validatorID string) (current, max int, err error) {
	cur, capacity, ok := s.slots.Load(validatorID)
	if !ok {
		return 0, 0, registry.ErrProfileNotFound
	}
	return cur, capacity, nil
}

// Sweep processes due deadline timers immediately. The supervisor's
// loop does this on its own; the explicit trigger serves operational
// tooling.
func (s *Service) Sweep(ctx context.Context) {
	s.supervisor.Sweep(ctx)
}

// ReplaceAssignment creates one replacement assignment after an SLA
// breach, drawing from the moderator pool when escalate is set.
func (s *Service) ReplaceAssignment(ctx context.Context, evidenceID string, escalate bool) (bool, error) {
	ev, err := s.evidence.Get(ctx, evidenceID)
	if err != nil {
		return false, err
	}
	if ev.Status.Terminal() {
		return false, nil
	}

	a, err := s.matcher.AssignReplacement(ctx, ev, escalate)
	if err != nil {
		return false, err
	}

	slaCfg := s.slas[ev.Policy]
	if escalate {
		slaCfg = s.slas[model.PolicyModerator]
	}
	if err := s.track(*a, slaCfg); err != nil {
		return false, err
	}
	return true, nil
}

// FlagEscalationExhausted parks evidence with no escalation attempts left.
func (s *Service) FlagEscalationExhausted(ctx context.Context, evidenceID string) error {
	_, err := s.evidence.CompareAndSwapStatus(ctx, evidenceID,
		[]model.EvidenceStatus{model.EvidencePending, model.EvidenceInReview, model.EvidenceFlagged},
		model.EvidenceFlagged)
	return err
}

// track registers one assignment deadline with the supervisor.
func (s *Service) track(a model.Assignment, slaCfg model.ValidationSLA) error {
	return s.supervisor.Track(sla.Entry{
		AssignmentID: a.ID,
		EvidenceID:   a.EvidenceID,
		ValidatorID:  a.ValidatorID,
		DueAt:        a.DueAt,
		WarningLead:  slaCfg.WarningLead(),
	})
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":            s.started,
		"sweepInterval":      s.sweepInterval.String(),
		"maxEscalationDepth": s.maxEscalationDepth,
	}

	if s.started {
		stats["evidenceCount"] = s.evidence.Count(ctx)
		stats["activeAssignments"] = s.assignments.CountActive(ctx)
		stats["validators"] = s.registry.Count(ctx)
	}

	return stats
}
