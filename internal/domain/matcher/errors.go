package matcher

import "errors"

// Sentinel kinds for matcher errors.
var (
	ErrValidatorUnavailable = errors.New("no eligible validator available")
	ErrNoHumanAssignment    = errors.New("policy does not use human assignments")
	ErrMissingSLA           = errors.New("no SLA configured for policy")
	ErrDuplicateAssignment  = errors.New("duplicate active assignment")
)
