package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	service "github.com/questline/verity/internal/app"
	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/pkg/logger"
)

// Specialties submitted evidence draws from.
var specialties = []string{"backend", "frontend", "data", "security"} //nolint:gochecknoglobals // fixed scenario vocabulary

// Run executes the scenario against an in-process service.
func Run(ctx context.Context, cfg *Config) error {
	if err := cfg.normalize(); err != nil {
		return err
	}

	stats := &Stats{StartTime: time.Now()}
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // synthetic load needs no crypto strength

	svc := service.New()
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if err := seedPool(ctx, svc, cfg); err != nil {
		return err
	}

	handles, err := submitAll(ctx, svc, cfg, rng, stats)
	if err != nil {
		return err
	}

	completeAll(ctx, svc, cfg, rng, handles, stats)
	escalateFlagged(ctx, svc, handles, stats)
	if err := verify(ctx, svc, handles, stats); err != nil {
		return err
	}

	stats.Duration = time.Since(stats.StartTime)
	displayFinalStats(stats)
	return nil
}

func (c *Config) normalize() error {
	if c.Validators <= 0 || c.Submissions <= 0 {
		return errors.New("scenario: validators and submissions must be positive")
	}
	if c.Moderators <= 0 {
		c.Moderators = 1
	}
	if c.Quorum <= 0 {
		c.Quorum = 3
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return nil
}

// completeAll drains open assignments with biased random scores.
func completeAll(ctx context.Context, svc *service.Service, cfg *Config, rng *rand.Rand, handles []service.Handle, stats *Stats) {
	type task struct {
		assignmentID string
		score        float64
	}

	var mu sync.Mutex
	tasks := make(chan task)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				_, err := svc.CompleteAssignment(ctx, t.assignmentID, t.score, "scenario")
				mu.Lock()
				if err != nil {
					stats.SoftRejections++
				} else {
					stats.Completions++
				}
				mu.Unlock()
				if cfg.Verbose {
					logger.Get().Debug(ctx, "assignment completed",
						logger.String("assignment", t.assignmentID),
						logger.Float64("score", t.score),
					)
				}
			}
		}()
	}

	for _, h := range handles {
		for _, a := range h.Assignments {
			tasks <- task{assignmentID: a.ID, score: biasedScore(rng)}
		}
	}
	close(tasks)
	wg.Wait()
}

// escalateFlagged pushes flagged evidence through the moderator path.
func escalateFlagged(ctx context.Context, svc *service.Service, handles []service.Handle, stats *Stats) {
	for _, h := range handles {
		ev, err := svc.Status(ctx, h.EvidenceID)
		if err != nil || ev.Status != model.EvidenceFlagged {
			continue
		}
		if err := svc.Escalate(ctx, h.EvidenceID); err != nil {
			continue
		}
		stats.Escalated++

		for _, a := range svc.ActiveAssignments(ctx, h.EvidenceID) {
			if _, err := svc.CompleteAssignment(ctx, a.ID, 4.0, "moderator resolution"); err == nil {
				stats.Completions++
			}
		}
	}
}

// verify checks that no evidence is stuck in an open state and tallies
// the outcomes.
func verify(ctx context.Context, svc *service.Service, handles []service.Handle, stats *Stats) error {
	for _, h := range handles {
		ev, err := svc.Status(ctx, h.EvidenceID)
		if err != nil {
			return fmt.Errorf("evidence %s: %w", h.EvidenceID, err)
		}
		switch ev.Status {
		case model.EvidenceApproved:
			stats.Approved++
		case model.EvidenceRejected:
			stats.Rejected++
		case model.EvidenceFlagged:
			stats.Flagged++
		case model.EvidenceCancelled:
			stats.Cancelled++
		default:
			return fmt.Errorf("evidence %s stuck in %s", ev.ID, ev.Status)
		}
	}
	return nil
}

// displayFinalStats prints the final scenario statistics.
func displayFinalStats(stats *Stats) {
	logger.Get().Info(context.Background(), "scenario finished",
		logger.Int("submitted", stats.Submitted),
		logger.Int("approved", stats.Approved),
		logger.Int("rejected", stats.Rejected),
		logger.Int("flagged", stats.Flagged),
		logger.Int("escalated", stats.Escalated),
		logger.Int("cancelled", stats.Cancelled),
		logger.Int("completions", stats.Completions),
		logger.Int("softRejections", stats.SoftRejections),
		logger.String("duration", stats.Duration.String()),
	)
}
