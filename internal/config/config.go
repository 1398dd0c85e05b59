// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Flat koanf keys; defaults layered under file and env overrides.
// - External errors must be wrapped via this package's sentinel kinds.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// RequiredValidations is the peer-policy quorum size.
	RequiredValidations int `koanf:"required_validations"`

	// SweepIntervalSeconds sets the deadline sweep period.
	SweepIntervalSeconds int `koanf:"sweep_interval_seconds"`

	// MaxEscalationDepth bounds SLA-breach replacements per evidence.
	MaxEscalationDepth int `koanf:"max_escalation_depth"`

	// Per-policy review windows and warning leads, in minutes.
	PeerResponseMinutes      int `koanf:"peer_response_minutes"`
	PeerWarningMinutes       int `koanf:"peer_warning_minutes"`
	ModeratorResponseMinutes int `koanf:"moderator_response_minutes"`
	ModeratorWarningMinutes  int `koanf:"moderator_warning_minutes"`

	// Consensus thresholds. A non-positive HardRejectFloor or
	// DisagreementSpread disables that check.
	ApproveThreshold         float64 `koanf:"approve_threshold"`
	HardRejectFloor          float64 `koanf:"hard_reject_floor"`
	DisagreementSpread       float64 `koanf:"disagreement_spread"`
	ModeratorApproveFraction float64 `koanf:"moderator_approve_fraction"`
	ScoreMin                 float64 `koanf:"score_min"`
	ScoreMax                 float64 `koanf:"score_max"`

	// Matching weights and candidate filters.
	SpecialtyWeight float64 `koanf:"specialty_weight"`
	LoadWeight      float64 `koanf:"load_weight"`
	RatingWeight    float64 `koanf:"rating_weight"`
	MatchJitter     float64 `koanf:"match_jitter"`
	MinRating       float64 `koanf:"min_rating"`

	// ExpiryPenalty feeds this rating sample to validators whose
	// assignments expire. Disabled unless ExpiryPenaltyEnabled is set.
	ExpiryPenaltyEnabled bool    `koanf:"expiry_penalty_enabled"`
	ExpiryPenalty        float64 `koanf:"expiry_penalty"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		Addr:                     ":9080",
		RequiredValidations:      3,
		SweepIntervalSeconds:     60,
		MaxEscalationDepth:       3,
		PeerResponseMinutes:      60,
		PeerWarningMinutes:       10,
		ModeratorResponseMinutes: 30,
		ModeratorWarningMinutes:  5,
		ApproveThreshold:         4.0,
		HardRejectFloor:          2.0,
		DisagreementSpread:       3.0,
		ModeratorApproveFraction: 0.5,
		ScoreMin:                 0.0,
		ScoreMax:                 5.0,
		SpecialtyWeight:          0.5,
		LoadWeight:               0.3,
		RatingWeight:             0.2,
		MatchJitter:              0.05,
		MinRating:                0.0,
		ExpiryPenalty:            1.0,
	}
}
