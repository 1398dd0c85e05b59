package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/questline/verity/internal/scenario"
)

// Default configuration constants.
const (
	defaultValidators  = 12
	defaultModerators  = 2
	defaultSubmissions = 200
	defaultQuorum      = 3
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		validators  = flag.Int("validators", defaultValidators, "Number of peer validators to register")
		moderators  = flag.Int("moderators", defaultModerators, "Number of moderators to register")
		submissions = flag.Int("submissions", defaultSubmissions, "Number of evidence submissions to generate")
		quorum      = flag.Int("quorum", defaultQuorum, "Required validations per peer submission")
		workers     = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		seed        = flag.Int64("seed", 0, "Random seed (default: current time)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		scenario.ShowHelp()
		return
	}

	if err := scenario.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &scenario.Config{
		Validators:  *validators,
		Moderators:  *moderators,
		Submissions: *submissions,
		Quorum:      *quorum,
		Workers:     *workers,
		Seed:        *seed,
		Verbose:     *verbose,
	}

	if err := scenario.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Scenario failed: " + err.Error() + "\n")
		return
	}
}
