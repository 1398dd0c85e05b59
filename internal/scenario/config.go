// Package scenario drives the validation engine with synthetic load and
// verifies that every piece of evidence settles.
package scenario

import "time"

// Config holds configuration for a scenario run.
type Config struct {
	Validators  int   // size of the peer validator pool
	Moderators  int   // size of the moderator pool
	Submissions int   // number of evidence items to submit
	Quorum      int   // peer-policy quorum size
	Workers     int   // concurrent completion workers
	Seed        int64 // randomness seed; 0 derives one from the clock
	Verbose     bool  // log every completion
}

// Stats holds scenario run statistics.
type Stats struct {
	Submitted      int
	Approved       int
	Rejected       int
	Flagged        int
	Escalated      int
	Cancelled      int
	Completions    int
	SoftRejections int
	StartTime      time.Time
	Duration       time.Duration
}
