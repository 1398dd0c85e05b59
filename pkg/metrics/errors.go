package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors. Callers match with errors.Is.
var (
	// ErrObserveFailed reports that a metric observation could not be recorded,
	// typically because the manager was built against a closed registry.
	ErrObserveFailed = errors.New("metrics: observe failed")
)
