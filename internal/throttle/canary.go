package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lewta/funcscale/internal/clock"
)

const (
	// Interval is the canary's own tick cadence.
	Interval = 100 * time.Millisecond
	// FailureThreshold is the missed-tick fraction that flips the canary to
	// Enabled.
	FailureThreshold = 0.50
)

// Executor is the shared work-submission surface the canary schedules
// itself onto. A canary detects starvation of Executor, which stands in for
// whatever pool the host's own function invocations run on — if a trivial
// 100ms tick can't complete on time, neither can real work.
type Executor interface {
	Submit(func())
}

// GoroutineExecutor submits work directly to the Go runtime scheduler. It is
// the default for hosts that dispatch invocations as plain goroutines rather
// than through a bounded worker pool of their own.
type GoroutineExecutor struct{}

// Submit implements Executor.
func (GoroutineExecutor) Submit(fn func()) { go fn() }

// Canary is a thread-starvation provider: it schedules a periodic tick onto
// a shared Executor and, on Status, compares how many ticks it expected to
// observe against how many actually completed.
type Canary struct {
	executor Executor
	clk      clock.Clock

	interval         time.Duration
	failureThreshold float64

	mu        sync.Mutex
	observed  int64
	lastCheck time.Time

	cancel   context.CancelFunc
	disposed bool
}

// NewCanary creates a Canary that submits work to executor and measures
// elapsed time with clk. interval and failureThreshold override the tick
// cadence and missed-tick fraction; either left <= 0 falls back to the
// package default (Interval/FailureThreshold).
func NewCanary(executor Executor, clk clock.Clock, interval time.Duration, failureThreshold float64) *Canary {
	if executor == nil {
		executor = GoroutineExecutor{}
	}
	if interval <= 0 {
		interval = Interval
	}
	if failureThreshold <= 0 {
		failureThreshold = FailureThreshold
	}
	return &Canary{
		executor:         executor,
		clk:              clk,
		interval:         interval,
		failureThreshold: failureThreshold,
		lastCheck:        clk.Now(),
	}
}

// Start begins the periodic tick until ctx is cancelled or Dispose is called.
func (c *Canary) Start(ctx context.Context) {
	tickCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(tickCtx)
}

func (c *Canary) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.executor.Submit(c.RecordTick)
		}
	}
}

// RecordTick counts one completed tick. It is exported so tests can drive
// the canary's counter directly, without a real-time ticking goroutine.
func (c *Canary) RecordTick() {
	c.mu.Lock()
	c.observed++
	c.mu.Unlock()
}

// Status implements Provider: it computes expected ticks since the previous
// Status call from the clock, compares against observed ticks, and resets
// the counter.
func (c *Canary) Status(logger *zerolog.Logger) State {
	now := c.clk.Now()

	c.mu.Lock()
	elapsed := now.Sub(c.lastCheck)
	observed := c.observed
	c.observed = 0
	c.lastCheck = now
	c.mu.Unlock()

	expected := int64(elapsed / c.interval)
	if expected <= 0 {
		return Disabled
	}

	missed := expected - observed
	if missed < 0 {
		missed = 0
	}

	if float64(missed) > float64(expected)*c.failureThreshold {
		if logger != nil {
			logger.Warn().
				Int64("expected", expected).
				Int64("observed", observed).
				Int64("missed", missed).
				Msg("throttle: thread pool starvation detected")
		}
		return Enabled
	}
	return Disabled
}

// Dispose stops the tick goroutine. It is idempotent.
func (c *Canary) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	if c.cancel != nil {
		c.cancel()
	}
}
