package registry

import "errors"

// Sentinel kinds for registry errors.
var (
	ErrProfileNotFound = errors.New("validator profile not found")
	ErrProfileExists   = errors.New("validator profile already registered")
)
