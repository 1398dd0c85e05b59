package scenario

import (
	"fmt"
	"os"

	"github.com/questline/verity/pkg/logger"
)

// SetupLogging initializes structured logging for the scenario run.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			return fmt.Errorf("failed to set log level: %w", err)
		}
	}
	return nil
}

// ShowHelp prints usage information for the scenario driver.
func ShowHelp() {
	os.Stdout.WriteString(`Verity Validation Scenario Driver
=================================

Drives an in-process validation engine with synthetic evidence and
verifies that every submission settles.

Usage:
  go run cmd/scenario/main.go [options]

Options:
  -validators int
        Number of peer validators to register (default 12)
  -moderators int
        Number of moderators to register (default 2)
  -submissions int
        Number of evidence submissions to generate (default 200)
  -quorum int
        Required validations per peer submission (default 3)
  -workers int
        Number of concurrent workers (default CPU cores)
  -seed int
        Random seed (default: current time)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run with default settings
  go run cmd/scenario/main.go

  # Larger pool under heavier load
  go run cmd/scenario/main.go -validators 50 -submissions 5000 -workers 16

  # Reproducible run
  go run cmd/scenario/main.go -seed 42 -verbose
`)
}
