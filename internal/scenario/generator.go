package scenario

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	service "github.com/questline/verity/internal/app"
	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/pkg/logger"
)

// seedPool registers the validator and moderator population.
func seedPool(ctx context.Context, svc *service.Service, cfg *Config) error {
	for i := 0; i < cfg.Validators; i++ {
		specs := map[string]struct{}{specialties[i%len(specialties)]: {}}
		// Every other validator covers a second specialty so the pool
		// is never starved for any single one.
		if i%2 == 0 {
			specs[specialties[(i+1)%len(specialties)]] = struct{}{}
		}
		p := model.ValidatorProfile{
			ID:                       model.NewID(),
			UserID:                   fmt.Sprintf("validator-%d", i),
			Specialties:              specs,
			MaxConcurrentAssignments: 8,
			Available:                true,
			Rating:                   3.0 + float64(i%3),
			RatingCount:              5,
		}
		if err := svc.RegisterValidator(ctx, p); err != nil {
			return fmt.Errorf("register validator: %w", err)
		}
	}

	for i := 0; i < cfg.Moderators; i++ {
		specs := make(map[string]struct{}, len(specialties))
		for _, sp := range specialties {
			specs[sp] = struct{}{}
		}
		p := model.ValidatorProfile{
			ID:                       model.NewID(),
			UserID:                   fmt.Sprintf("moderator-%d", i),
			Specialties:              specs,
			MaxConcurrentAssignments: 16,
			Available:                true,
			Rating:                   4.5,
			RatingCount:              20,
			Moderator:                true,
		}
		if err := svc.RegisterValidator(ctx, p); err != nil {
			return fmt.Errorf("register moderator: %w", err)
		}
	}
	return nil
}

// submitAll fans submissions out over the worker pool and collects the
// accepted handles.
func submitAll(ctx context.Context, svc *service.Service, cfg *Config, rng *rand.Rand, stats *Stats) ([]service.Handle, error) {
	subs := make([]service.Submission, 0, cfg.Submissions)
	for i := 0; i < cfg.Submissions; i++ {
		subs = append(subs, service.Submission{
			SubmitterID:             fmt.Sprintf("player-%d", rng.Intn(cfg.Submissions)),
			ChallengeID:             fmt.Sprintf("challenge-%d", rng.Intn(8)),
			Specialty:               specialties[rng.Intn(len(specialties))],
			Policy:                  pickPolicy(rng),
			RequiredValidationCount: cfg.Quorum,
		})
	}

	var (
		mu      sync.Mutex
		handles []service.Handle
		wg      sync.WaitGroup
	)
	work := make(chan service.Submission)
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range work {
				h, err := svc.Submit(ctx, sub)
				mu.Lock()
				if err != nil {
					stats.SoftRejections++
				} else {
					handles = append(handles, h)
					stats.Submitted++
				}
				mu.Unlock()
				if cfg.Verbose {
					logger.Get().Debug(ctx, "evidence submitted",
						logger.String("specialty", sub.Specialty),
						logger.String("policy", string(sub.Policy)),
						logger.Error(err),
					)
				}
			}
		}()
	}

	for _, sub := range subs {
		work <- sub
	}
	close(work)
	wg.Wait()

	return handles, nil
}

// pickPolicy skews toward peer review, the common production path.
func pickPolicy(rng *rand.Rand) model.Policy {
	switch rng.Intn(10) {
	case 0:
		return model.PolicyModerator
	case 1:
		return model.PolicyAutomatic
	case 2:
		return model.PolicyNone
	default:
		return model.PolicyPeer
	}
}

// biasedScore favors passing scores with an occasional outlier so the
// run exercises approvals, rejections and disagreement flags.
func biasedScore(rng *rand.Rand) float64 {
	switch rng.Intn(10) {
	case 0:
		return 0.5
	case 1:
		return 1.5
	case 2:
		return 3.0
	default:
		return 4.0 + rng.Float64()
	}
}
