package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrEvidenceNotFound    = errors.New("evidence not found")
	ErrEvidenceExists      = errors.New("evidence already stored")
	ErrEvidenceTerminal    = errors.New("evidence already decided")
	ErrAssignmentNotFound  = errors.New("assignment not found")
	ErrDuplicateAssignment = errors.New("active assignment already exists for pair")
	ErrAlreadyExpired      = errors.New("assignment already expired")
	ErrAlreadyCompleted    = errors.New("assignment already completed")
	ErrNotActive           = errors.New("assignment not active")
)
