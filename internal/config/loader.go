package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if VERITY_CONFIG is set
//  3. env (prefix VERITY_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("VERITY_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: VERITY_ADDR, VERITY_APPROVE_THRESHOLD, ...
	// Map env keys like VERITY_SCORE_MAX -> score_max (flat keys).
	envProvider := env.Provider("VERITY_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "verity_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RequiredValidations <= 0:
		return fmt.Errorf("%w: required_validations must be positive", ErrInvalidConfig)
	case c.SweepIntervalSeconds <= 0:
		return fmt.Errorf("%w: sweep_interval_seconds must be positive", ErrInvalidConfig)
	case c.PeerResponseMinutes <= 0 || c.ModeratorResponseMinutes <= 0:
		return fmt.Errorf("%w: response minutes must be positive", ErrInvalidConfig)
	case c.ScoreMax <= c.ScoreMin:
		return fmt.Errorf("%w: score_max must exceed score_min", ErrInvalidConfig)
	case c.ApproveThreshold < c.ScoreMin || c.ApproveThreshold > c.ScoreMax:
		return fmt.Errorf("%w: approve_threshold outside score range", ErrInvalidConfig)
	case c.ModeratorApproveFraction < 0 || c.ModeratorApproveFraction > 1:
		return fmt.Errorf("%w: moderator_approve_fraction outside [0, 1]", ErrInvalidConfig)
	case c.SpecialtyWeight < 0 || c.LoadWeight < 0 || c.RatingWeight < 0:
		return fmt.Errorf("%w: matching weights must be non-negative", ErrInvalidConfig)
	case c.MatchJitter < 0:
		return fmt.Errorf("%w: match_jitter must be non-negative", ErrInvalidConfig)
	}
	return nil
}
