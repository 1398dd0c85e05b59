// Package repository defines the authoritative evidence and assignment
// stores and their errors.
package repository

import "time"

// EvidenceOption applies a configuration option to the MemoryEvidenceStore.
type EvidenceOption func(*MemoryEvidenceStore)

// WithEvidenceClock sets the time source used for decision timestamps.
func WithEvidenceClock(now func() time.Time) EvidenceOption {
	return func(s *MemoryEvidenceStore) {
		if now != nil {
			s.now = now
		}
	}
}
