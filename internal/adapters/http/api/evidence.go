// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	service "github.com/questline/verity/internal/app"
	"github.com/questline/verity/internal/adapters/repository"
	"github.com/questline/verity/internal/domain/model"
)

// EvidenceDependencies defines the interface for evidence operations.
type EvidenceDependencies interface {
	Submit(ctx context.Context, sub service.Submission) (service.Handle, error)
	Cancel(ctx context.Context, evidenceID string) error
	Escalate(ctx context.Context, evidenceID string) error
	Status(ctx context.Context, evidenceID string) (model.Evidence, error)
}

// EvidenceHandler handles evidence requests.
type EvidenceHandler struct {
	deps EvidenceDependencies
}

// NewEvidenceHandler creates a new evidence handler.
func NewEvidenceHandler(deps EvidenceDependencies) *EvidenceHandler {
	return &EvidenceHandler{deps: deps}
}

// evidenceRequest mirrors the shape of POST /evidence.
type evidenceRequest struct {
	SubmitterID             string `json:"submitter_id"`
	ChallengeID             string `json:"challenge_id"`
	Specialty               string `json:"specialty"`
	Policy                  string `json:"policy"`
	RequiredValidationCount int    `json:"required_validation_count"`
}

func (e evidenceRequest) validate() error {
	switch {
	case strings.TrimSpace(e.SubmitterID) == "":
		return errors.New("missing submitter_id")
	case strings.TrimSpace(e.ChallengeID) == "":
		return errors.New("missing challenge_id")
	case strings.TrimSpace(e.Policy) == "":
		return errors.New("missing policy")
	case e.RequiredValidationCount < 0:
		return errors.New("required_validation_count must not be negative")
	}
	return nil
}

type assignmentView struct {
	ID          string    `json:"id"`
	ValidatorID string    `json:"validator_id"`
	AssignedAt  time.Time `json:"assigned_at"`
	DueAt       time.Time `json:"due_at"`
	Status      string    `json:"status"`
}

type submitResponse struct {
	EvidenceID  string           `json:"evidence_id"`
	Status      string           `json:"status"`
	Assignments []assignmentView `json:"assignments,omitempty"`
}

type scoreView struct {
	ValidatorID string    `json:"validator_id"`
	Value       float64   `json:"value"`
	Feedback    string    `json:"feedback,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type evidenceView struct {
	ID                      string      `json:"id"`
	SubmitterID             string      `json:"submitter_id"`
	ChallengeID             string      `json:"challenge_id"`
	Specialty               string      `json:"specialty,omitempty"`
	Policy                  string      `json:"policy"`
	Status                  string      `json:"status"`
	RequiredValidationCount int         `json:"required_validation_count"`
	CollectedScores         []scoreView `json:"collected_scores"`
	FinalScore              float64     `json:"final_score"`
	SubmittedAt             time.Time   `json:"submitted_at"`
	DecidedAt               *time.Time  `json:"decided_at,omitempty"`
}

// HandlePostEvidence handles POST /evidence requests.
func (h *EvidenceHandler) HandlePostEvidence(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_evidence"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req evidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	handle, err := h.deps.Submit(r.Context(), service.Submission{
		SubmitterID:             req.SubmitterID,
		ChallengeID:             req.ChallengeID,
		Specialty:               req.Specialty,
		Policy:                  model.Policy(req.Policy),
		RequiredValidationCount: req.RequiredValidationCount,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPolicy):
			writeError(w, http.StatusBadRequest, "bad_request", err)
		case errors.Is(err, service.ErrDuplicateSubmission):
			writeError(w, http.StatusConflict, "duplicate_submission", WrapKind(op, ErrConflict, err))
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}

	views := make([]assignmentView, 0, len(handle.Assignments))
	for _, a := range handle.Assignments {
		views = append(views, assignmentView{
			ID:          a.ID,
			ValidatorID: a.ValidatorID,
			AssignedAt:  a.AssignedAt,
			DueAt:       a.DueAt,
			Status:      string(a.Status),
		})
	}
	writeJSON(w, http.StatusAccepted, submitResponse{
		EvidenceID:  handle.EvidenceID,
		Status:      string(handle.Status),
		Assignments: views,
	})
}

// HandleEvidenceByID routes /evidence/{id} and its sub-resources.
func (h *EvidenceHandler) HandleEvidenceByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/evidence/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleGetEvidence(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		h.handleCancel(w, r, id)
	case action == "escalate" && r.Method == http.MethodPost:
		h.handleEscalate(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *EvidenceHandler) handleGetEvidence(w http.ResponseWriter, r *http.Request, id string) {
	ev, err := h.deps.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrEvidenceNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	scores := make([]scoreView, 0, len(ev.CollectedScores))
	for _, s := range ev.CollectedScores {
		scores = append(scores, scoreView{
			ValidatorID: s.ValidatorID,
			Value:       s.Value,
			Feedback:    s.Feedback,
			RecordedAt:  s.RecordedAt,
		})
	}

	view := evidenceView{
		ID:                      ev.ID,
		SubmitterID:             ev.SubmitterID,
		ChallengeID:             ev.ChallengeID,
		Specialty:               ev.Specialty,
		Policy:                  string(ev.Policy),
		Status:                  string(ev.Status),
		RequiredValidationCount: ev.RequiredValidationCount,
		CollectedScores:         scores,
		FinalScore:              ev.FinalScore,
		SubmittedAt:             ev.SubmittedAt,
	}
	if !ev.DecidedAt.IsZero() {
		view.DecidedAt = &ev.DecidedAt
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *EvidenceHandler) handleCancel(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.cancel_evidence"
	if err := h.deps.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrEvidenceNotFound):
			writeError(w, http.StatusNotFound, "not_found", err)
		case errors.Is(err, repository.ErrEvidenceTerminal):
			writeError(w, http.StatusConflict, "conflict", WrapKind(op, ErrConflict, err))
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "cancelled"})
}

func (h *EvidenceHandler) handleEscalate(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.escalate_evidence"
	if err := h.deps.Escalate(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrEvidenceNotFound):
			writeError(w, http.StatusNotFound, "not_found", err)
		case errors.Is(err, service.ErrNotFlagged):
			writeError(w, http.StatusConflict, "conflict", WrapKind(op, ErrConflict, err))
		default:
			writeError(w, http.StatusServiceUnavailable, "no_moderator", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "escalated"})
}
