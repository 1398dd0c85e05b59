// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Policy selects how a piece of evidence is validated.
type Policy string

// Validation policies.
const (
	PolicyPeer      Policy = "peer"      // quorum of peer validators
	PolicyModerator Policy = "moderator" // single authoritative moderator score
	PolicyAutomatic Policy = "automatic" // synthetic score, no human assignment
	PolicyNone      Policy = "none"      // no validation required
)

// EvidenceStatus is the lifecycle state of an evidence item.
type EvidenceStatus string

// Evidence lifecycle states.
const (
	EvidencePending   EvidenceStatus = "PENDING"
	EvidenceInReview  EvidenceStatus = "IN_REVIEW"
	EvidenceApproved  EvidenceStatus = "APPROVED"
	EvidenceRejected  EvidenceStatus = "REJECTED"
	EvidenceFlagged   EvidenceStatus = "FLAGGED"
	EvidenceCancelled EvidenceStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
// FLAGGED is deliberately non-terminal: flagged evidence can re-enter
// review once escalated to a moderator pool.
func (s EvidenceStatus) Terminal() bool {
	switch s {
	case EvidenceApproved, EvidenceRejected, EvidenceCancelled:
		return true
	default:
		return false
	}
}

// AssignmentStatus is the lifecycle state of a single review assignment.
type AssignmentStatus string

// Assignment lifecycle states.
const (
	AssignmentPending    AssignmentStatus = "PENDING"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted  AssignmentStatus = "COMPLETED"
	AssignmentExpired    AssignmentStatus = "EXPIRED"
	AssignmentReassigned AssignmentStatus = "REASSIGNED"
	AssignmentCancelled  AssignmentStatus = "CANCELLED"
)

// Active reports whether the assignment still awaits a validator action.
func (s AssignmentStatus) Active() bool {
	return s == AssignmentPending || s == AssignmentInProgress
}

// Score is one validator's recorded verdict on an evidence item.
type Score struct {
	ValidatorID string
	Value       float64
	Feedback    string
	RecordedAt  time.Time
}

// Evidence is a user-submitted artifact claiming progress on a challenge.
// Mutated only through the lifecycle controller's transition API.
type Evidence struct {
	ID                      string
	SubmitterID             string
	ChallengeID             string
	Specialty               string // from the challenge's validation settings
	Policy                  Policy
	Status                  EvidenceStatus
	RequiredValidationCount int
	CollectedScores         []Score // append-only, capped at quorum
	FinalScore              float64
	SubmittedAt             time.Time
	DecidedAt               time.Time
}

// Certification attests a validator's competence for a specialty until expiry.
type Certification struct {
	Specialty string
	ExpiresAt time.Time
}

// ValidatorProfile describes one validator in the pool.
// CurrentLoad is owned by the workload tracker; nothing else writes it.
type ValidatorProfile struct {
	ID                       string
	UserID                   string
	Specialties              map[string]struct{}
	MaxConcurrentAssignments int
	CurrentLoad              int
	Available                bool
	Rating                   float64
	RatingCount              int
	Certifications           []Certification
	Moderator                bool
}

// HasSpecialty reports whether the profile lists the given specialty.
func (p *ValidatorProfile) HasSpecialty(specialty string) bool {
	_, ok := p.Specialties[specialty]
	return ok
}

// CertifiedFor reports whether the profile holds a non-expired
// certification for the specialty.
func (p *ValidatorProfile) CertifiedFor(specialty string, now time.Time) bool {
	for _, c := range p.Certifications {
		if c.Specialty == specialty && c.ExpiresAt.After(now) {
			return true
		}
	}
	return false
}

// Assignment pairs one evidence item with one validator for a bounded
// review window. At most one active assignment may exist per
// (evidence, validator) pair.
type Assignment struct {
	ID          string
	EvidenceID  string
	ValidatorID string
	AssignedAt  time.Time
	DueAt       time.Time
	Status      AssignmentStatus
	Score       *float64 // nil until COMPLETED
	Feedback    string
	Released    bool // workload reservation already returned
}

// ValidationSLA is immutable per-policy deadline configuration.
type ValidationSLA struct {
	ID                  string
	AppliesTo           Policy
	ResponseTimeMinutes int
	WarningLeadMinutes  int
	EscalationTarget    string // moderator pool id, empty when none
}

// ResponseTime returns the review window as a duration.
func (s ValidationSLA) ResponseTime() time.Duration {
	return time.Duration(s.ResponseTimeMinutes) * time.Minute
}

// WarningLead returns the pre-deadline warning lead as a duration.
func (s ValidationSLA) WarningLead() time.Duration {
	return time.Duration(s.WarningLeadMinutes) * time.Minute
}

// NotificationKind discriminates SLA notification events.
type NotificationKind string

// Notification kinds.
const (
	NotificationWarning NotificationKind = "WARNING"
	NotificationBreach  NotificationKind = "BREACH"
)

// SLANotification is the event record handed to the notification
// collaborator. Delivery is out of scope; only the trigger is.
type SLANotification struct {
	AssignmentID string
	Kind         NotificationKind
	TriggeredAt  time.Time
}

// NewID mints a unique identifier for evidence and assignments.
func NewID() string {
	return uuid.NewString()
}
