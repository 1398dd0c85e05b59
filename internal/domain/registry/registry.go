// Package registry tracks validator profiles and answers candidate queries.
//
// Reads are frequent (every matching round); writes are rare administrative
// operations and are linearizable per profile.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/pkg/metrics"
)

// Registry provides candidate lookup and profile administration.
type Registry interface {
	// FindCandidates returns available validators eligible for the given
	// specialty, ordered by rating descending. The evidence submitter is
	// always excluded.
	FindCandidates(ctx context.Context, specialty, excludeUserID string, minRating float64) []model.ValidatorProfile

	// ModeratorPool returns available moderators, ordered by rating descending.
	ModeratorPool(ctx context.Context, excludeUserID string) []model.ValidatorProfile

	// Get returns a snapshot of one profile.
	Get(ctx context.Context, validatorID string) (model.ValidatorProfile, error)

	// Administrative operations, linearizable per profile.
	Register(ctx context.Context, p model.ValidatorProfile) error
	SetAvailability(ctx context.Context, validatorID string, available bool) error
	AddSpecialty(ctx context.Context, validatorID, specialty string) error
	RemoveSpecialty(ctx context.Context, validatorID, specialty string) error
	AddCertification(ctx context.Context, validatorID string, cert model.Certification) error
	RecordRating(ctx context.Context, validatorID string, sample float64) error

	// RecordExpiry applies the configured rating penalty, if any, after a
	// validator lets an assignment expire.
	RecordExpiry(ctx context.Context, validatorID string) error

	// Count returns the number of registered profiles.
	Count(ctx context.Context) int
}

// profileEntry guards one profile. The per-entry mutex makes concurrent
// administrative writes to the same profile linearizable without a
// registry-wide write lock.
type profileEntry struct {
	mu sync.Mutex
	p  model.ValidatorProfile
}

// InMemoryRegistry implements Registry over a map of profiles.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	profiles map[string]*profileEntry

	// expiryPenalty, when > 0, is fed into the rating running average as a
	// low sample each time an assignment expires on a validator.
	expiryPenalty  float64
	penaltyEnabled bool
	now            func() time.Time
}

// NewInMemoryRegistry creates a registry with configuration options.
func NewInMemoryRegistry(opts ...Option) *InMemoryRegistry {
	r := &InMemoryRegistry{
		profiles: make(map[string]*profileEntry),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a new profile. Registering an existing id fails.
func (r *InMemoryRegistry) Register(ctx context.Context, p model.ValidatorProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[p.ID]; exists {
		return ErrProfileExists
	}
	if p.Specialties == nil {
		p.Specialties = make(map[string]struct{})
	}
	r.profiles[p.ID] = &profileEntry{p: p}
	metrics.UpdateValidatorPoolSize(len(r.profiles))
	return nil
}

// Get returns a snapshot of one profile.
func (r *InMemoryRegistry) Get(ctx context.Context, validatorID string) (model.ValidatorProfile, error) {
	e, err := r.entry(validatorID)
	if err != nil {
		return model.ValidatorProfile{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(&e.p), nil
}

// FindCandidates returns eligible candidates for a specialty.
func (r *InMemoryRegistry) FindCandidates(ctx context.Context, specialty, excludeUserID string, minRating float64) []model.ValidatorProfile {
	now := r.now()
	return r.collect(func(p *model.ValidatorProfile) bool {
		if !p.Available || p.UserID == excludeUserID {
			return false
		}
		if p.Rating < minRating {
			return false
		}
		// Eligibility needs either the specialty listed or a live
		// certification for it; certification quality is reflected in
		// the matcher's ranking, not here.
		return p.HasSpecialty(specialty) || p.CertifiedFor(specialty, now)
	})
}

// ModeratorPool returns available moderators.
func (r *InMemoryRegistry) ModeratorPool(ctx context.Context, excludeUserID string) []model.ValidatorProfile {
	return r.collect(func(p *model.ValidatorProfile) bool {
		return p.Moderator && p.Available && p.UserID != excludeUserID
	})
}

// SetAvailability flips a validator's availability flag.
func (r *InMemoryRegistry) SetAvailability(ctx context.Context, validatorID string, available bool) error {
	return r.update(validatorID, func(p *model.ValidatorProfile) {
		p.Available = available
	})
}

// AddSpecialty adds a specialty to a profile.
func (r *InMemoryRegistry) AddSpecialty(ctx context.Context, validatorID, specialty string) error {
	return r.update(validatorID, func(p *model.ValidatorProfile) {
		p.Specialties[specialty] = struct{}{}
	})
}

// RemoveSpecialty removes a specialty from a profile.
func (r *InMemoryRegistry) RemoveSpecialty(ctx context.Context, validatorID, specialty string) error {
	return r.update(validatorID, func(p *model.ValidatorProfile) {
		delete(p.Specialties, specialty)
	})
}

// AddCertification attaches a certification to a profile.
func (r *InMemoryRegistry) AddCertification(ctx context.Context, validatorID string, cert model.Certification) error {
	return r.update(validatorID, func(p *model.ValidatorProfile) {
		p.Certifications = append(p.Certifications, cert)
	})
}

// RecordRating folds a new sample into the rating running average.
func (r *InMemoryRegistry) RecordRating(ctx context.Context, validatorID string, sample float64) error {
	return r.update(validatorID, func(p *model.ValidatorProfile) {
		p.RatingCount++
		p.Rating += (sample - p.Rating) / float64(p.RatingCount)
	})
}

// RecordExpiry applies the expiry rating penalty when configured.
func (r *InMemoryRegistry) RecordExpiry(ctx context.Context, validatorID string) error {
	if !r.penaltyEnabled {
		return nil
	}
	return r.RecordRating(ctx, validatorID, r.expiryPenalty)
}

// Count returns the number of registered profiles.
func (r *InMemoryRegistry) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

func (r *InMemoryRegistry) entry(validatorID string) (*profileEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.profiles[validatorID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return e, nil
}

func (r *InMemoryRegistry) update(validatorID string, fn func(*model.ValidatorProfile)) error {
	e, err := r.entry(validatorID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.p)
	return nil
}

// collect snapshots matching profiles ordered by rating descending,
// id ascending for determinism.
func (r *InMemoryRegistry) collect(match func(*model.ValidatorProfile) bool) []model.ValidatorProfile {
	r.mu.RLock()
	entries := make([]*profileEntry, 0, len(r.profiles))
	for _, e := range r.profiles {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]model.ValidatorProfile, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if match(&e.p) {
			out = append(out, snapshot(&e.p))
		}
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// snapshot deep-copies a profile so callers never share mutable state.
func snapshot(p *model.ValidatorProfile) model.ValidatorProfile {
	cp := *p
	cp.Specialties = make(map[string]struct{}, len(p.Specialties))
	for s := range p.Specialties {
		cp.Specialties[s] = struct{}{}
	}
	cp.Certifications = append([]model.Certification(nil), p.Certifications...)
	return cp
}
