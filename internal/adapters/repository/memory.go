// Package repository defines the authoritative evidence and assignment
// stores and their errors.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/pkg/metrics"
)

// MemoryEvidenceStore implements EvidenceStore over a mutex-guarded map.
type MemoryEvidenceStore struct {
	mu    sync.Mutex
	items map[string]*model.Evidence
	now   func() time.Time
}

// NewMemoryEvidenceStore creates an empty evidence store.
func NewMemoryEvidenceStore(opts ...EvidenceOption) *MemoryEvidenceStore {
	s := &MemoryEvidenceStore{
		items: make(map[string]*model.Evidence),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores new evidence.
func (s *MemoryEvidenceStore) Create(ctx context.Context, ev model.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[ev.ID]; exists {
		return ErrEvidenceExists
	}
	cp := ev
	cp.CollectedScores = append([]model.Score(nil), ev.CollectedScores...)
	s.items[ev.ID] = &cp
	return nil
}

// Get returns a snapshot of one evidence item.
func (s *MemoryEvidenceStore) Get(ctx context.Context, id string) (model.Evidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.items[id]
	if !ok {
		return model.Evidence{}, ErrEvidenceNotFound
	}
	return copyEvidence(ev), nil
}

// CompareAndSwapStatus transitions status when the expected value matches.
func (s *MemoryEvidenceStore) CompareAndSwapStatus(ctx context.Context, id string, from []model.EvidenceStatus, to model.EvidenceStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.items[id]
	if !ok {
		return false, ErrEvidenceNotFound
	}
	for _, f := range from {
		if ev.Status == f {
			ev.Status = to
			return true, nil
		}
	}
	return false, nil
}

// AppendScore appends a score unless the evidence is terminal or at cap.
func (s *MemoryEvidenceStore) AppendScore(ctx context.Context, id string, sc model.Score) ([]model.Score, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.items[id]
	if !ok {
		return nil, false, ErrEvidenceNotFound
	}
	if ev.Status.Terminal() {
		return nil, false, ErrEvidenceTerminal
	}
	if ev.RequiredValidationCount > 0 && len(ev.CollectedScores) >= ev.RequiredValidationCount {
		// Quorum already collected; a racing completion lost.
		return append([]model.Score(nil), ev.CollectedScores...), false, nil
	}
	ev.CollectedScores = append(ev.CollectedScores, sc)
	return append([]model.Score(nil), ev.CollectedScores...), true, nil
}

// Decide records a terminal decision from a non-terminal state.
func (s *MemoryEvidenceStore) Decide(ctx context.Context, id string, status model.EvidenceStatus, finalScore float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.items[id]
	if !ok {
		return false, ErrEvidenceNotFound
	}
	if ev.Status.Terminal() {
		return false, nil
	}
	ev.Status = status
	ev.FinalScore = finalScore
	ev.DecidedAt = s.now()
	return true, nil
}

// Count returns the number of stored evidence items.
func (s *MemoryEvidenceStore) Count(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func copyEvidence(ev *model.Evidence) model.Evidence {
	cp := *ev
	cp.CollectedScores = append([]model.Score(nil), ev.CollectedScores...)
	return cp
}

// MemoryAssignmentStore implements AssignmentStore over a mutex-guarded map
// with an active-pair index for the per-pair uniqueness invariant.
type MemoryAssignmentStore struct {
	mu     sync.Mutex
	items  map[string]*model.Assignment
	active map[pairKey]string // (evidence, validator) -> assignment id
}

type pairKey struct {
	evidenceID  string
	validatorID string
}

// NewMemoryAssignmentStore creates an empty assignment store.
func NewMemoryAssignmentStore() *MemoryAssignmentStore {
	return &MemoryAssignmentStore{
		items:  make(map[string]*model.Assignment),
		active: make(map[pairKey]string),
	}
}

// Create stores a new assignment, enforcing pair uniqueness.
func (s *MemoryAssignmentStore) Create(ctx context.Context, a model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{a.EvidenceID, a.ValidatorID}
	if _, exists := s.active[key]; exists {
		return ErrDuplicateAssignment
	}
	cp := a
	s.items[a.ID] = &cp
	if a.Status.Active() {
		s.active[key] = a.ID
	}
	s.updateGauge()
	return nil
}

// Get returns a snapshot of one assignment.
func (s *MemoryAssignmentStore) Get(ctx context.Context, id string) (model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items[id]
	if !ok {
		return model.Assignment{}, ErrAssignmentNotFound
	}
	return *a, nil
}

// Complete transitions an active assignment to COMPLETED with its score.
func (s *MemoryAssignmentStore) Complete(ctx context.Context, id string, score float64, feedback string) (model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items[id]
	if !ok {
		return model.Assignment{}, ErrAssignmentNotFound
	}
	switch a.Status {
	case model.AssignmentPending, model.AssignmentInProgress:
		// fallthrough to complete
	case model.AssignmentExpired, model.AssignmentReassigned:
		return *a, ErrAlreadyExpired
	case model.AssignmentCompleted:
		return *a, ErrAlreadyCompleted
	default:
		return *a, ErrNotActive
	}

	a.Status = model.AssignmentCompleted
	v := score
	a.Score = &v
	a.Feedback = feedback
	delete(s.active, pairKey{a.EvidenceID, a.ValidatorID})
	s.updateGauge()
	return *a, nil
}

// CompareAndSwapStatus transitions status when the expected value matches.
func (s *MemoryAssignmentStore) CompareAndSwapStatus(ctx context.Context, id string, from []model.AssignmentStatus, to model.AssignmentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items[id]
	if !ok {
		return false, ErrAssignmentNotFound
	}
	for _, f := range from {
		if a.Status == f {
			wasActive := a.Status.Active()
			a.Status = to
			if wasActive && !to.Active() {
				delete(s.active, pairKey{a.EvidenceID, a.ValidatorID})
			}
			s.updateGauge()
			return true, nil
		}
	}
	return false, nil
}

// MarkReleased flips the released flag; only the first caller wins.
func (s *MemoryAssignmentStore) MarkReleased(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items[id]
	if !ok {
		return false, ErrAssignmentNotFound
	}
	if a.Released {
		return false, nil
	}
	a.Released = true
	return true, nil
}

// HasActive reports whether the pair currently has an active assignment.
func (s *MemoryAssignmentStore) HasActive(ctx context.Context, evidenceID, validatorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[pairKey{evidenceID, validatorID}]
	return ok
}

// ActiveByEvidence lists active assignments for one evidence item.
func (s *MemoryAssignmentStore) ActiveByEvidence(ctx context.Context, evidenceID string) []model.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Assignment
	for key, id := range s.active {
		if key.evidenceID == evidenceID {
			out = append(out, *s.items[id])
		}
	}
	return out
}

// CountActive returns the number of active assignments.
func (s *MemoryAssignmentStore) CountActive(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// updateGauge is called with s.mu held.
func (s *MemoryAssignmentStore) updateGauge() {
	metrics.UpdateActiveAssignments(len(s.active))
}
