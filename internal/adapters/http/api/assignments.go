// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/questline/verity/internal/app"
	"github.com/questline/verity/internal/adapters/repository"
)

// AssignmentDependencies defines the interface for assignment operations.
type AssignmentDependencies interface {
	CompleteAssignment(ctx context.Context, assignmentID string, score float64, feedback string) (*service.Decision, error)
}

// AssignmentHandler handles assignment requests.
type AssignmentHandler struct {
	deps AssignmentDependencies
}

// NewAssignmentHandler creates a new assignment handler.
func NewAssignmentHandler(deps AssignmentDependencies) *AssignmentHandler {
	return &AssignmentHandler{deps: deps}
}

// completeRequest mirrors the shape of POST /assignments/{id}/complete.
type completeRequest struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

type decisionResponse struct {
	EvidenceID string  `json:"evidence_id"`
	Decided    bool    `json:"decided"`
	Status     string  `json:"status,omitempty"`
	FinalScore float64 `json:"final_score,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// HandleAssignment routes /assignments/{id}/complete.
func (h *AssignmentHandler) HandleAssignment(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/assignments/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" || action != "complete" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	h.handleComplete(w, r, id)
}

func (h *AssignmentHandler) handleComplete(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.complete_assignment"

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	d, err := h.deps.CompleteAssignment(r.Context(), id, req.Score, req.Feedback)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidScore):
			writeError(w, http.StatusBadRequest, "invalid_score", err)
		case errors.Is(err, repository.ErrAssignmentNotFound):
			writeError(w, http.StatusNotFound, "not_found", err)
		case errors.Is(err, repository.ErrAlreadyExpired):
			writeError(w, http.StatusConflict, "expired", WrapKind(op, ErrConflict, err))
		case errors.Is(err, repository.ErrAlreadyCompleted):
			writeError(w, http.StatusConflict, "already_completed", WrapKind(op, ErrConflict, err))
		case errors.Is(err, repository.ErrNotActive):
			writeError(w, http.StatusConflict, "not_active", WrapKind(op, ErrConflict, err))
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, decisionResponse{
		EvidenceID: d.EvidenceID,
		Decided:    d.Decided,
		Status:     string(d.Status),
		FinalScore: d.FinalScore,
		Reason:     d.Reason,
	})
}
