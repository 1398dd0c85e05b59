// Package matcher selects and reserves validators for submitted evidence.
//
// Candidates are ranked by a weighted score of specialty fit, headroom and
// rating, with a small random jitter so the same top validator is not
// picked every round.
package matcher

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/pkg/logger"
	"github.com/questline/verity/pkg/metrics"
)

// Default ranking configuration constants.
const (
	defaultSpecialtyWeight = 0.5
	defaultLoadWeight      = 0.3
	defaultRatingWeight    = 0.2
	defaultJitter          = 0.05
	defaultRatingScale     = 5.0
)

// CandidateSource answers candidate queries; implemented by the registry.
type CandidateSource interface {
	FindCandidates(ctx context.Context, specialty, excludeUserID string, minRating float64) []model.ValidatorProfile
	ModeratorPool(ctx context.Context, excludeUserID string) []model.ValidatorProfile
}

// Reserver claims validator capacity; implemented by the workload tracker.
type Reserver interface {
	TryReserve(validatorID string) bool
	Load(validatorID string) (current, max int, ok bool)
}

// Assignments is the slice of the assignment store the matcher needs.
type Assignments interface {
	Create(ctx context.Context, a model.Assignment) error
	HasActive(ctx context.Context, evidenceID, validatorID string) bool
}

// Result carries the outcome of one matching round.
type Result struct {
	Assignments []model.Assignment
	// Exhausted is set when fewer validators than required could be
	// reserved. Partial reservations are kept, not rolled back; the
	// deficit is handled by the escalation path.
	Exhausted bool
}

// Matcher creates review assignments for evidence.
type Matcher struct {
	source CandidateSource
	slots  Reserver
	store  Assignments
	slas   map[model.Policy]model.ValidationSLA

	specialtyWeight float64
	loadWeight      float64
	ratingWeight    float64
	jitter          float64
	ratingScale     float64
	minRating       float64

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time

	logger logger.Logger
}

// New creates a Matcher with configuration options.
func New(source CandidateSource, slots Reserver, store Assignments, slas map[model.Policy]model.ValidationSLA, opts ...Option) *Matcher {
	m := &Matcher{
		source:          source,
		slots:           slots,
		store:           store,
		slas:            slas,
		specialtyWeight: defaultSpecialtyWeight,
		loadWeight:      defaultLoadWeight,
		ratingWeight:    defaultRatingWeight,
		jitter:          defaultJitter,
		ratingScale:     defaultRatingScale,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // jitter needs no crypto strength
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = logger.Get().Named("matcher")
	}

	return m
}

// Assign reserves validators for the evidence per its policy.
// Peer policy draws requiredValidationCount validators from the normal
// pool; moderator policy draws one from the moderator pool.
func (m *Matcher) Assign(ctx context.Context, ev model.Evidence) (Result, error) {
	start := m.now()
	defer func() {
		metrics.RecordMatchLatency(float64(m.now().Sub(start).Milliseconds()))
	}()

	switch ev.Policy {
	case model.PolicyPeer:
		pool := m.source.FindCandidates(ctx, ev.Specialty, ev.SubmitterID, m.minRating)
		return m.reserve(ctx, ev, pool, ev.RequiredValidationCount, false)
	case model.PolicyModerator:
		pool := m.source.ModeratorPool(ctx, ev.SubmitterID)
		return m.reserve(ctx, ev, pool, 1, true)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrNoHumanAssignment, ev.Policy)
	}
}

// AssignReplacement creates a single replacement assignment after an SLA
// breach, from the moderator pool when escalate is set.
func (m *Matcher) AssignReplacement(ctx context.Context, ev model.Evidence, escalate bool) (*model.Assignment, error) {
	var pool []model.ValidatorProfile
	if escalate {
		pool = m.source.ModeratorPool(ctx, ev.SubmitterID)
	} else {
		pool = m.source.FindCandidates(ctx, ev.Specialty, ev.SubmitterID, m.minRating)
	}

	res, err := m.reserve(ctx, ev, pool, 1, escalate)
	if err != nil {
		return nil, err
	}
	if len(res.Assignments) == 0 {
		return nil, ErrValidatorUnavailable
	}
	return &res.Assignments[0], nil
}

// reserve ranks the pool and claims slots until need is met.
func (m *Matcher) reserve(ctx context.Context, ev model.Evidence, pool []model.ValidatorProfile, need int, moderator bool) (Result, error) {
	metrics.RecordCandidatesRanked(len(pool))
	ranked := m.rank(ev, pool, moderator)

	// Moderator-pool reservations run on the moderator deadline even when
	// the evidence itself carries another policy.
	policy := ev.Policy
	if moderator {
		policy = model.PolicyModerator
	}
	sla, ok := m.slas[policy]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingSLA, policy)
	}

	now := m.now()
	res := Result{}
	for _, c := range ranked {
		if len(res.Assignments) >= need {
			break
		}
		// A validator already holding an active assignment for this
		// evidence is not a candidate again.
		if m.store.HasActive(ctx, ev.ID, c.profile.ID) {
			continue
		}
		if !m.slots.TryReserve(c.profile.ID) {
			metrics.RecordCapacitySkip()
			m.logger.Debug(ctx, "candidate at capacity, skipping",
				logger.String("validator", c.profile.ID),
				logger.String("evidence", ev.ID),
			)
			continue
		}

		a := model.Assignment{
			ID:          model.NewID(),
			EvidenceID:  ev.ID,
			ValidatorID: c.profile.ID,
			AssignedAt:  now,
			DueAt:       now.Add(sla.ResponseTime()),
			Status:      model.AssignmentPending,
		}
		if err := m.store.Create(ctx, a); err != nil {
			// The pair check above plus the reservation make this
			// unreachable; reaching it means the uniqueness invariant
			// is broken.
			panic(fmt.Errorf("%w: evidence=%s validator=%s: %v",
				ErrDuplicateAssignment, ev.ID, c.profile.ID, err))
		}
		metrics.RecordAssignmentCreated()
		res.Assignments = append(res.Assignments, a)
	}

	if len(res.Assignments) < need {
		res.Exhausted = true
		metrics.RecordPoolExhaustion()
		m.logger.Warn(ctx, "validator pool exhausted",
			logger.String("evidence", ev.ID),
			logger.Int("reserved", len(res.Assignments)),
			logger.Int("required", need),
		)
	}
	return res, nil
}

type rankedCandidate struct {
	profile model.ValidatorProfile
	score   float64
}

// rank orders candidates by the weighted matching score, best first.
func (m *Matcher) rank(ev model.Evidence, pool []model.ValidatorProfile, moderator bool) []rankedCandidate {
	now := m.now()
	ranked := make([]rankedCandidate, 0, len(pool))
	for _, p := range pool {
		specialty := 1.0
		if !moderator {
			switch {
			case p.CertifiedFor(ev.Specialty, now):
				specialty = 1.0
			case p.HasSpecialty(ev.Specialty):
				specialty = 0.5
			default:
				specialty = 0
			}
		}

		headroom := 0.0
		if cur, max, ok := m.slots.Load(p.ID); ok && max > 0 {
			headroom = 1 - float64(cur)/float64(max)
		}

		rating := p.Rating / m.ratingScale

		score := m.specialtyWeight*specialty +
			m.loadWeight*headroom +
			m.ratingWeight*rating +
			m.jitterSample()

		ranked = append(ranked, rankedCandidate{profile: p, score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].profile.ID < ranked[j].profile.ID
	})
	return ranked
}

func (m *Matcher) jitterSample() float64 {
	if m.jitter <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() * m.jitter
}
