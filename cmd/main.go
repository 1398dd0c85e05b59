package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/questline/verity/internal/adapters/http/api"
	"github.com/questline/verity/internal/adapters/http/swagger"
	app "github.com/questline/verity/internal/app"
	"github.com/questline/verity/internal/config"
	"github.com/questline/verity/internal/domain/consensus"
	"github.com/questline/verity/internal/domain/matcher"
	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/pkg/logger"
	"github.com/questline/verity/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics;
	// the system metrics updater collects its own.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Create and start the service with configuration options
	svc := app.New(serviceOptions(cfg, loggerInstance)...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	// API reference
	swagger.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// serviceOptions translates loaded configuration into service options.
func serviceOptions(cfg *config.Config, l logger.Logger) []app.Option {
	opts := []app.Option{
		app.WithLogger(l),
		app.WithRequiredValidations(cfg.RequiredValidations),
		app.WithSweepInterval(time.Duration(cfg.SweepIntervalSeconds) * time.Second),
		app.WithMaxEscalationDepth(cfg.MaxEscalationDepth),
		app.WithSLAs(map[model.Policy]model.ValidationSLA{
			model.PolicyPeer: {
				ID:                  "sla-peer",
				AppliesTo:           model.PolicyPeer,
				ResponseTimeMinutes: cfg.PeerResponseMinutes,
				WarningLeadMinutes:  cfg.PeerWarningMinutes,
			},
			model.PolicyModerator: {
				ID:                  "sla-moderator",
				AppliesTo:           model.PolicyModerator,
				ResponseTimeMinutes: cfg.ModeratorResponseMinutes,
				WarningLeadMinutes:  cfg.ModeratorWarningMinutes,
			},
		}),
		app.WithMatcherOptions(
			matcher.WithWeights(cfg.SpecialtyWeight, cfg.LoadWeight, cfg.RatingWeight),
			matcher.WithJitter(cfg.MatchJitter),
			matcher.WithMinRating(cfg.MinRating),
			matcher.WithRatingScale(cfg.ScoreMax),
		),
		app.WithResolverOptions(
			consensus.WithApproveThreshold(cfg.ApproveThreshold),
			consensus.WithHardRejectFloor(cfg.HardRejectFloor),
			consensus.WithDisagreementSpread(cfg.DisagreementSpread),
			consensus.WithModeratorApproveFraction(cfg.ModeratorApproveFraction),
			consensus.WithScoreRange(cfg.ScoreMin, cfg.ScoreMax),
		),
	}
	if cfg.ExpiryPenaltyEnabled {
		opts = append(opts, app.WithExpiryPenalty(cfg.ExpiryPenalty))
	}
	return opts
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
