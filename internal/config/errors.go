package config

import (
	"errors"
)

// Sentinel kinds for configuration errors. Callers match with errors.Is.
var (
	// ErrLoadConfig wraps failures reading or merging configuration sources.
	ErrLoadConfig = errors.New("config: load failed")
	// ErrInvalidConfig wraps validation failures on a loaded configuration.
	ErrInvalidConfig = errors.New("config: validation failed")
)
