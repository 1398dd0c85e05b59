package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/questline/verity/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	ctx := context.Background()

	Convey("Given no file and no environment overrides", t, func() {
		cfg, err := config.Load(ctx)

		Convey("Defaults come through", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.RequiredValidations, ShouldEqual, 3)
			So(cfg.PeerResponseMinutes, ShouldEqual, 60)
			So(cfg.ModeratorResponseMinutes, ShouldEqual, 30)
			So(cfg.ApproveThreshold, ShouldEqual, 4.0)
			So(cfg.HardRejectFloor, ShouldEqual, 2.0)
			So(cfg.DisagreementSpread, ShouldEqual, 3.0)
			So(cfg.ScoreMax, ShouldEqual, 5.0)
			So(cfg.MaxEscalationDepth, ShouldEqual, 3)
			So(cfg.ExpiryPenaltyEnabled, ShouldBeFalse)
		})
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	ctx := context.Background()

	Convey("Given environment overrides", t, func() {
		t.Setenv("VERITY_ADDR", ":7070")
		t.Setenv("VERITY_REQUIRED_VALIDATIONS", "5")
		t.Setenv("VERITY_APPROVE_THRESHOLD", "3.5")
		t.Setenv("VERITY_MATCH_JITTER", "0")

		cfg, err := config.Load(ctx)

		Convey("They take precedence over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.RequiredValidations, ShouldEqual, 5)
			So(cfg.ApproveThreshold, ShouldEqual, 3.5)
			So(cfg.MatchJitter, ShouldEqual, 0.0)
			// Untouched keys keep their defaults.
			So(cfg.ScoreMax, ShouldEqual, 5.0)
		})
	})
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()

	Convey("Given a YAML config file", t, func() {
		path := filepath.Join(t.TempDir(), "verity.yaml")
		body := []byte("addr: \":6060\"\npeer_response_minutes: 120\nexpiry_penalty_enabled: true\n")
		So(os.WriteFile(path, body, 0o600), ShouldBeNil)
		t.Setenv("VERITY_CONFIG", path)

		Convey("File values layer over defaults", func() {
			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":6060")
			So(cfg.PeerResponseMinutes, ShouldEqual, 120)
			So(cfg.ExpiryPenaltyEnabled, ShouldBeTrue)
		})

		Convey("Environment still wins over the file", func() {
			t.Setenv("VERITY_ADDR", ":6061")
			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":6061")
		})

		Convey("A missing file is a load error", func() {
			t.Setenv("VERITY_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
			_, err := config.Load(ctx)
			So(err, ShouldWrap, config.ErrLoadConfig)
		})
	})
}

func TestLoadValidation(t *testing.T) {
	ctx := context.Background()

	Convey("Given invalid settings", t, func() {
		Convey("An inverted score range is rejected", func() {
			t.Setenv("VERITY_SCORE_MAX", "-1")
			_, err := config.Load(ctx)
			So(err, ShouldWrap, config.ErrInvalidConfig)
		})

		Convey("A zero quorum is rejected", func() {
			t.Setenv("VERITY_REQUIRED_VALIDATIONS", "0")
			_, err := config.Load(ctx)
			So(err, ShouldWrap, config.ErrInvalidConfig)
		})

		Convey("An out-of-range moderator fraction is rejected", func() {
			t.Setenv("VERITY_MODERATOR_APPROVE_FRACTION", "1.5")
			_, err := config.Load(ctx)
			So(err, ShouldWrap, config.ErrInvalidConfig)
		})
	})
}
