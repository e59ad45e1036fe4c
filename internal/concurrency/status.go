// Package concurrency implements the per-function concurrency state machine
// and the manager that drives it from throttle signals. The velocity/run
// bookkeeping and hysteresis gates are the hard part of this package.
package concurrency

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lewta/funcscale/internal/clock"
)

const (
	// DefaultMaxDegreeOfParallelism is the per-function ceiling.
	DefaultMaxDegreeOfParallelism = 100
	// AdjustmentFloor is the minimum spacing between adjustments for one
	// function.
	AdjustmentFloor = 5 * time.Second
	// QuietWindow is how long increases are forbidden after a decrease.
	QuietWindow = 30 * time.Second
	// RunWindow is how long a same-direction streak survives before the
	// velocity run counter resets.
	RunWindow = 10 * time.Second
	// maxRunCredit caps the velocity bonus so a single adjustment never
	// moves by more than 1+5 = 6.
	maxRunCredit = 5
)

// Status is the per-function concurrency status. outstanding and
// maxConcurrentSinceLastAdjustment are touched by both GetStatus (a single
// non-concurrent caller per function id) and the invocation callbacks
// FunctionStarted/FunctionCompleted (arbitrary goroutines), so they are
// guarded by mu. currentParallelism is only ever written by GetStatus but
// is read without a lock by listener-side FetchCount, so it is atomic.
// Every other field is touched only from GetStatus and needs no
// synchronization under the manager's non-concurrent-per-id contract.
type Status struct {
	clk         clock.Clock
	isThrottled func() bool

	adjustmentFloor time.Duration
	quietWindow     time.Duration
	runWindow       time.Duration

	currentParallelism atomic.Int32

	mu                               sync.Mutex
	outstanding                      int
	maxConcurrentSinceLastAdjustment int

	lastAdjustmentAt       time.Time
	lastFailedAdjustmentAt *time.Time
	adjustmentRunDirection int
	adjustmentRunCount     int
}

// New creates a Status starting at parallelism 1, using the package default
// adjustment floor, quiet window, and run window. isThrottled is a
// non-owning back-reference to the manager's cached throttle state.
func New(clk clock.Clock, isThrottled func() bool) *Status {
	return NewWithTimings(clk, isThrottled, 0, 0, 0)
}

// NewWithTimings is New with explicit overrides for the anti-thrash floor,
// the post-decrease quiet window, and the velocity run window. Any value
// <= 0 falls back to the package default (AdjustmentFloor/QuietWindow/
// RunWindow respectively).
func NewWithTimings(clk clock.Clock, isThrottled func() bool, adjustmentFloor, quietWindow, runWindow time.Duration) *Status {
	if adjustmentFloor <= 0 {
		adjustmentFloor = AdjustmentFloor
	}
	if quietWindow <= 0 {
		quietWindow = QuietWindow
	}
	if runWindow <= 0 {
		runWindow = RunWindow
	}
	s := &Status{
		clk:             clk,
		isThrottled:     isThrottled,
		adjustmentFloor: adjustmentFloor,
		quietWindow:     quietWindow,
		runWindow:       runWindow,
	}
	s.currentParallelism.Store(1)
	s.lastAdjustmentAt = clk.Now()
	return s
}

// CurrentParallelism returns the current per-function cap.
func (s *Status) CurrentParallelism() int {
	return int(s.currentParallelism.Load())
}

// Outstanding returns the current outstanding-invocation count.
func (s *Status) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding
}

// FetchCount returns how many additional invocations may start right now:
// 0 if throttled or over-subscribed, else the remaining room under the
// current cap.
func (s *Status) FetchCount() int {
	if s.isThrottled != nil && s.isThrottled() {
		return 0
	}
	current := int(s.currentParallelism.Load())
	s.mu.Lock()
	outstanding := s.outstanding
	s.mu.Unlock()

	if outstanding > current {
		return 0
	}
	return current - outstanding
}

// FunctionStarted records the start of one invocation and raises the
// high-water mark if needed.
func (s *Status) FunctionStarted() {
	s.mu.Lock()
	s.outstanding++
	if s.outstanding > s.maxConcurrentSinceLastAdjustment {
		s.maxConcurrentSinceLastAdjustment = s.outstanding
	}
	s.mu.Unlock()
}

// FunctionCompleted records the completion of one invocation.
func (s *Status) FunctionCompleted() {
	s.mu.Lock()
	if s.outstanding > 0 {
		s.outstanding--
	}
	s.mu.Unlock()
}

// CanAdjust reports whether enough time has passed since the last
// adjustment (the anti-thrash floor).
func (s *Status) CanAdjust() bool {
	return s.clk.Now().Sub(s.lastAdjustmentAt) > s.adjustmentFloor
}

// CanDecrease reports whether parallelism may still be lowered.
func (s *Status) CanDecrease() bool {
	return s.currentParallelism.Load() > 1
}

// CanIncrease reports whether parallelism may be raised, gated by the
// post-decrease quiet window and the utilization high-water mark. limit is
// the effective ceiling for this call.
func (s *Status) CanIncrease(limit int) bool {
	now := s.clk.Now()
	if s.lastFailedAdjustmentAt != nil {
		if now.Sub(*s.lastFailedAdjustmentAt) < s.quietWindow {
			return false
		}
		s.lastFailedAdjustmentAt = nil
	}

	s.mu.Lock()
	highWater := s.maxConcurrentSinceLastAdjustment
	s.mu.Unlock()

	if highWater < int(s.currentParallelism.Load()) {
		return false
	}
	return int(s.currentParallelism.Load()) < limit
}

// Increase raises parallelism by the velocity-shaped delta, clamped at
// limit, and resets the high-water mark.
func (s *Status) Increase(limit int) {
	delta := s.nextDelta(1)
	next := int(s.currentParallelism.Load()) + delta
	if next > limit {
		next = limit
	}
	s.currentParallelism.Store(int32(next))
	s.finishAdjustment()
}

// Decrease lowers parallelism by the velocity-shaped delta, clamped at 1,
// records the failed-adjustment timestamp, and resets the high-water mark.
func (s *Status) Decrease() {
	delta := s.nextDelta(-1)
	next := int(s.currentParallelism.Load()) - delta
	if next < 1 {
		next = 1
	}
	s.currentParallelism.Store(int32(next))
	now := s.clk.Now()
	s.lastFailedAdjustmentAt = &now
	s.finishAdjustment()
}

func (s *Status) finishAdjustment() {
	s.mu.Lock()
	s.maxConcurrentSinceLastAdjustment = 0
	s.mu.Unlock()
	s.lastAdjustmentAt = s.clk.Now()
}

// nextDelta implements the velocity/run rule: the run counter resets on a
// direction change or after RunWindow has elapsed since the last adjustment,
// the delta is computed from the counter *before* it is incremented, and the
// new direction is recorded.
func (s *Status) nextDelta(direction int) int {
	if direction != s.adjustmentRunDirection || s.clk.Now().Sub(s.lastAdjustmentAt) > s.runWindow {
		s.adjustmentRunCount = 0
	}
	delta := 1 + min(maxRunCredit, s.adjustmentRunCount)
	s.adjustmentRunCount++
	s.adjustmentRunDirection = direction
	return delta
}
