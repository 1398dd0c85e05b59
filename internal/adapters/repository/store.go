// Package repository defines the authoritative evidence and assignment
// stores and their errors.
//
// Persistence proper lives outside the engine; these stores are the
// in-memory authoritative state with synchronous mutation calls. Every
// state transition races through a compare-and-swap primitive here, so
// callers never read-then-write across the store API.
package repository

import (
	"context"

	"github.com/questline/verity/internal/domain/model"
)

// EvidenceStore provides read/write access to evidence state.
type EvidenceStore interface {
	// Create stores new evidence. The id must be unused.
	Create(ctx context.Context, ev model.Evidence) error

	// Get returns a snapshot of one evidence item.
	Get(ctx context.Context, id string) (model.Evidence, error)

	// CompareAndSwapStatus transitions status only when the current status
	// is one of from. Returns false (no error) when the race was lost.
	CompareAndSwapStatus(ctx context.Context, id string, from []model.EvidenceStatus, to model.EvidenceStatus) (bool, error)

	// AppendScore appends a score unless the evidence is terminal or the
	// quorum cap is already met. It returns the collected scores after the
	// call and whether this score was appended.
	AppendScore(ctx context.Context, id string, s model.Score) ([]model.Score, bool, error)

	// Decide atomically records a terminal decision from a non-terminal
	// state. Returns false when the evidence was already decided.
	Decide(ctx context.Context, id string, status model.EvidenceStatus, finalScore float64) (bool, error)

	// Count returns the number of stored evidence items.
	Count(ctx context.Context) int
}

// AssignmentStore provides read/write access to assignment state.
type AssignmentStore interface {
	// Create stores a new assignment. It fails with ErrDuplicateAssignment
	// when an active assignment already exists for the same
	// (evidence, validator) pair.
	Create(ctx context.Context, a model.Assignment) error

	// Get returns a snapshot of one assignment.
	Get(ctx context.Context, id string) (model.Assignment, error)

	// Complete transitions an active assignment to COMPLETED and records
	// score and feedback in the same critical section. Race losers get
	// ErrAlreadyExpired, ErrAlreadyCompleted or ErrNotActive.
	Complete(ctx context.Context, id string, score float64, feedback string) (model.Assignment, error)

	// CompareAndSwapStatus transitions status only when the current status
	// is one of from. Returns false (no error) when the race was lost.
	CompareAndSwapStatus(ctx context.Context, id string, from []model.AssignmentStatus, to model.AssignmentStatus) (bool, error)

	// MarkReleased flips the reservation released flag. Returns true only
	// for the first caller, guarding double-release of workload slots.
	MarkReleased(ctx context.Context, id string) (bool, error)

	// HasActive reports whether an active assignment exists for the pair.
	HasActive(ctx context.Context, evidenceID, validatorID string) bool

	// ActiveByEvidence lists active assignments for one evidence item.
	ActiveByEvidence(ctx context.Context, evidenceID string) []model.Assignment

	// CountActive returns the number of active assignments.
	CountActive(ctx context.Context) int
}
