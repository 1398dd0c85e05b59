package sla

import "errors"

// Sentinel kinds for deadline supervision errors.
var (
	// ErrStopped reports tracking attempted after shutdown.
	ErrStopped = errors.New("sla: supervisor stopped")
)
