// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/internal/domain/registry"
)

// ValidatorDependencies defines the interface for validator pool operations.
type ValidatorDependencies interface {
	RegisterValidator(ctx context.Context, p model.ValidatorProfile) error
	SetValidatorAvailability(ctx context.Context, validatorID string, available bool) error
	ValidatorWorkload(ctx context.Context, validatorID string) (current, max int, err error)
}

// ValidatorHandler handles validator pool requests.
type ValidatorHandler struct {
	deps ValidatorDependencies
}

// NewValidatorHandler creates a new validator handler.
func NewValidatorHandler(deps ValidatorDependencies) *ValidatorHandler {
	return &ValidatorHandler{deps: deps}
}

// validatorRequest mirrors the shape of POST /validators.
type validatorRequest struct {
	ID                       string               `json:"id"`
	UserID                   string               `json:"user_id"`
	Specialties              []string             `json:"specialties"`
	MaxConcurrentAssignments int                  `json:"max_concurrent_assignments"`
	Rating                   float64              `json:"rating"`
	Moderator                bool                 `json:"moderator"`
	Certifications           []certificationEntry `json:"certifications"`
}

type certificationEntry struct {
	Specialty string    `json:"specialty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (v validatorRequest) validate() error {
	switch {
	case strings.TrimSpace(v.ID) == "":
		return errors.New("missing id")
	case strings.TrimSpace(v.UserID) == "":
		return errors.New("missing user_id")
	case v.MaxConcurrentAssignments <= 0:
		return errors.New("max_concurrent_assignments must be positive")
	}
	return nil
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

type workloadResponse struct {
	ValidatorID string `json:"validator_id"`
	CurrentLoad int    `json:"current_load"`
	MaxLoad     int    `json:"max_load"`
}

// HandlePostValidator handles POST /validators requests.
func (h *ValidatorHandler) HandlePostValidator(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_validator"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req validatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	specialties := make(map[string]struct{}, len(req.Specialties))
	for _, s := range req.Specialties {
		specialties[s] = struct{}{}
	}
	certs := make([]model.Certification, 0, len(req.Certifications))
	for _, c := range req.Certifications {
		certs = append(certs, model.Certification{Specialty: c.Specialty, ExpiresAt: c.ExpiresAt})
	}

	err := h.deps.RegisterValidator(r.Context(), model.ValidatorProfile{
		ID:                       req.ID,
		UserID:                   req.UserID,
		Specialties:              specialties,
		MaxConcurrentAssignments: req.MaxConcurrentAssignments,
		Available:                true,
		Rating:                   req.Rating,
		Certifications:           certs,
		Moderator:                req.Moderator,
	})
	if err != nil {
		if errors.Is(err, registry.ErrProfileExists) {
			writeError(w, http.StatusConflict, "conflict", WrapKind(op, ErrConflict, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "registered"})
}

// HandleValidatorByID routes /validators/{id}/workload and
// /validators/{id}/availability.
func (h *ValidatorHandler) HandleValidatorByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/validators/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch {
	case action == "workload" && r.Method == http.MethodGet:
		h.handleWorkload(w, r, id)
	case action == "availability" && r.Method == http.MethodPut:
		h.handleAvailability(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *ValidatorHandler) handleWorkload(w http.ResponseWriter, r *http.Request, id string) {
	cur, max, err := h.deps.ValidatorWorkload(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, workloadResponse{ValidatorID: id, CurrentLoad: cur, MaxLoad: max})
}

func (h *ValidatorHandler) handleAvailability(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.set_availability"
	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.SetValidatorAvailability(r.Context(), id, req.Available); err != nil {
		if errors.Is(err, registry.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "updated"})
}
