// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/questline/verity/internal/app"
	"github.com/questline/verity/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit accepts evidence for validation.
	Submit(ctx context.Context, sub service.Submission) (service.Handle, error)

	// CompleteAssignment records a validator's verdict.
	CompleteAssignment(ctx context.Context, assignmentID string, score float64, feedback string) (*service.Decision, error)

	// Cancel withdraws evidence from review.
	Cancel(ctx context.Context, evidenceID string) error

	// Escalate re-enters flagged evidence with a moderator assignment.
	Escalate(ctx context.Context, evidenceID string) error

	// Read operations expose evidence and validator state.
	Status(ctx context.Context, evidenceID string) (model.Evidence, error)
	ValidatorWorkload(ctx context.Context, validatorID string) (current, max int, err error)

	// Validator pool administration.
	RegisterValidator(ctx context.Context, p model.ValidatorProfile) error
	SetValidatorAvailability(ctx context.Context, validatorID string, available bool) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	evidenceHandler   *EvidenceHandler
	assignmentHandler *AssignmentHandler
	validatorHandler  *ValidatorHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		evidenceHandler:   NewEvidenceHandler(deps),
		assignmentHandler: NewAssignmentHandler(deps),
		validatorHandler:  NewValidatorHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/evidence", MetricsMiddleware(s.evidenceHandler.HandlePostEvidence, "evidence"))
	mux.HandleFunc("/evidence/", MetricsMiddleware(s.evidenceHandler.HandleEvidenceByID, "evidence_by_id"))
	mux.HandleFunc("/assignments/", MetricsMiddleware(s.assignmentHandler.HandleAssignment, "assignments"))
	mux.HandleFunc("/validators", MetricsMiddleware(s.validatorHandler.HandlePostValidator, "validators"))
	mux.HandleFunc("/validators/", MetricsMiddleware(s.validatorHandler.HandleValidatorByID, "validator_by_id"))
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
