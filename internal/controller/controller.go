// Package controller wires the per-function concurrency manager, the
// process-wide health monitor, and the thread-starvation canary into a
// single runnable unit for a host process.
package controller

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lewta/funcscale/internal/clock"
	"github.com/lewta/funcscale/internal/concurrency"
	"github.com/lewta/funcscale/internal/config"
	"github.com/lewta/funcscale/internal/health"
	"github.com/lewta/funcscale/internal/hostenv"
	"github.com/lewta/funcscale/internal/obsmetrics"
	"github.com/lewta/funcscale/internal/procmetrics"
	"github.com/lewta/funcscale/internal/throttle"
)

// Controller is the sample host's wiring of the concurrency subsystem: a
// health monitor for the current process, a thread-starvation canary, and a
// concurrency manager that combines both into per-function decisions.
type Controller struct {
	Manager *concurrency.Manager
	Health  *health.Monitor
	Canary  *throttle.Canary
	Metrics *obsmetrics.Metrics
}

// New builds a Controller from a loaded config. It monitors the calling
// process itself (os.Getpid) as the "host" process.
func New(cfg *config.Config, m *obsmetrics.Metrics) (*Controller, error) {
	clk := clock.Real()

	selfSource := procmetrics.NewGopsutilSource(int32(os.Getpid()))
	detector := hostenv.Dedicated{}
	cores := hostenv.TrueCores()

	healthOpts := health.Options{
		SampleInterval:          time.Duration(cfg.Health.SampleIntervalMs) * time.Millisecond,
		SampleHistorySize:       cfg.Health.SampleHistorySize,
		MinSampleCount:          cfg.Health.MinSampleCount,
		CPUThresholdPct:         cfg.Health.MaxCPUThreshold,
		MemoryThresholdFraction: cfg.Health.MaxMemoryThreshold,
		PerCoreGiB:              cfg.Health.PerCoreMemoryGiB,
	}
	hm := health.New(selfSource, cores, detector, healthOpts, &log.Logger)

	canaryInterval := time.Duration(cfg.Canary.IntervalMs) * time.Millisecond
	canary := throttle.NewCanary(throttle.GoroutineExecutor{}, clk, canaryInterval, cfg.Canary.FailureThreshold)

	providers := []throttle.Provider{
		throttle.NewHealthProvider(hm),
		canary,
	}

	ccfg := concurrency.Config{
		Enabled:                cfg.Concurrency.Enabled,
		MaxDegreeOfParallelism: cfg.Concurrency.MaxDegreeOfParallelism,
		MinConsecutiveIncrease: cfg.Concurrency.MinConsecutiveIncreaseLimit,
		MinConsecutiveDecrease: cfg.Concurrency.MinConsecutiveDecreaseLimit,
		AdjustmentFloor:        time.Duration(cfg.Concurrency.MinAdjustmentFrequencySeconds) * time.Second,
		QuietWindow:            time.Duration(cfg.Concurrency.FailedAdjustmentQuietWindowSec) * time.Second,
		RunWindow:              time.Duration(cfg.Concurrency.AdjustmentRunWindowSeconds) * time.Second,
		ThrottleCheckInterval:  time.Duration(cfg.Concurrency.ThrottleCheckIntervalSeconds) * time.Second,
	}
	mgr := concurrency.New(ccfg, providers, clk, &log.Logger)

	return &Controller{
		Manager: mgr,
		Health:  hm,
		Canary:  canary,
		Metrics: m,
	}, nil
}

// Run starts the background monitors and blocks until ctx is cancelled,
// periodically pushing state into the Prometheus gauges.
func (c *Controller) Run(ctx context.Context) {
	c.Health.Start(ctx)
	c.Canary.Start(ctx)

	log.Info().Msg("funcscale controller started")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("funcscale controller stopped")
			return
		case <-ticker.C:
			if c.Metrics != nil {
				c.Metrics.RecordSnapshot(c.Manager.Status())
				c.Metrics.RecordVerdict(c.Health.Status(&log.Logger))
			}
		}
	}
}
