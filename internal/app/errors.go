package service

import "errors"

// Sentinel kinds for lifecycle errors.
var (
	// ErrUnknownPolicy reports a submission with an unrecognized
	// validation policy.
	ErrUnknownPolicy = errors.New("service: unknown validation policy")

	// ErrInvalidScore reports a score outside the declared range,
	// rejected before it reaches the resolver.
	ErrInvalidScore = errors.New("service: score out of range")

	// ErrNotFlagged reports an escalation attempt on evidence that is
	// not flagged.
	ErrNotFlagged = errors.New("service: evidence is not flagged")

	// ErrDuplicateSubmission reports a submission while the same
	// submitter already has open evidence for the challenge.
	ErrDuplicateSubmission = errors.New("service: duplicate submission for open evidence")
)
