package concurrency

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lewta/funcscale/internal/clock"
	"github.com/lewta/funcscale/internal/throttle"
)

const (
	// ThrottleCheckInterval is the provider-poll cadence.
	ThrottleCheckInterval = time.Second
	// MinConsecutiveIncrease is how many healthy polls in a row are needed
	// before parallelism may grow.
	MinConsecutiveIncrease = 5
	// MinConsecutiveDecrease is how many unhealthy polls in a row are
	// needed before parallelism may shrink.
	MinConsecutiveDecrease = 3
)

// Config holds the manager's tunables. The four duration fields are
// optional: a zero value falls back to the package default it shadows
// (AdjustmentFloor, QuietWindow, RunWindow, ThrottleCheckInterval).
type Config struct {
	Enabled                bool
	MaxDegreeOfParallelism int
	MinConsecutiveIncrease int
	MinConsecutiveDecrease int

	AdjustmentFloor       time.Duration
	QuietWindow           time.Duration
	RunWindow             time.Duration
	ThrottleCheckInterval time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:                false,
		MaxDegreeOfParallelism: DefaultMaxDegreeOfParallelism,
		MinConsecutiveIncrease: MinConsecutiveIncrease,
		MinConsecutiveDecrease: MinConsecutiveDecrease,
		AdjustmentFloor:        AdjustmentFloor,
		QuietWindow:            QuietWindow,
		RunWindow:              RunWindow,
		ThrottleCheckInterval:  ThrottleCheckInterval,
	}
}

// Result is the read-side contract exposed to a listener loop.
type Result struct {
	CurrentParallelism     int
	OutstandingInvocations int
	FetchCount             int
}

// Manager owns the throttle providers and the per-function status map,
// combining throttle signals with hysteresis to drive parallelism on
// each per-function query.
type Manager struct {
	cfg       Config
	providers []throttle.Provider
	clk       clock.Clock
	logger    *zerolog.Logger

	throttleCheckInterval time.Duration

	statusMu sync.RWMutex
	statuses map[string]*Status

	cacheMu              sync.Mutex
	lastThrottleCheck    time.Time
	throttleEnabled      bool
	hasUnknownResult     bool
	consecutiveHealthy   int
	consecutiveUnhealthy int
}

// New creates a Manager. providers may be empty (no throttling, always
// healthy). logger may be nil.
func New(cfg Config, providers []throttle.Provider, clk clock.Clock, logger *zerolog.Logger) *Manager {
	if cfg.MaxDegreeOfParallelism < 1 {
		cfg.MaxDegreeOfParallelism = DefaultMaxDegreeOfParallelism
	}
	if cfg.MinConsecutiveIncrease < 1 {
		cfg.MinConsecutiveIncrease = MinConsecutiveIncrease
	}
	if cfg.MinConsecutiveDecrease < 1 {
		cfg.MinConsecutiveDecrease = MinConsecutiveDecrease
	}
	throttleCheckInterval := cfg.ThrottleCheckInterval
	if throttleCheckInterval <= 0 {
		throttleCheckInterval = ThrottleCheckInterval
	}
	return &Manager{
		cfg:                   cfg,
		providers:             providers,
		clk:                   clk,
		logger:                logger,
		throttleCheckInterval: throttleCheckInterval,
		statuses:              make(map[string]*Status),
	}
}

// Enabled reports the master dynamic_concurrency_enabled switch.
func (m *Manager) Enabled() bool { return m.cfg.Enabled }

// IsThrottleEnabled re-polls all providers if more than ThrottleCheckInterval
// has elapsed since the last poll, then returns the cached throttled bool.
// Concurrent callers racing the time gate may each perform a redundant poll;
// each write is newer-than-or-equal to the last so the cached state stays
// monotonically consistent.
func (m *Manager) IsThrottleEnabled() bool {
	now := m.clk.Now()

	m.cacheMu.Lock()
	stale := now.Sub(m.lastThrottleCheck) > m.throttleCheckInterval
	m.cacheMu.Unlock()

	if stale {
		m.updateThrottleState(now)
	}

	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	return m.throttleEnabled
}

func (m *Manager) updateThrottleState(now time.Time) {
	states := make([]throttle.State, 0, len(m.providers))
	for _, p := range m.providers {
		states = append(states, p.Status(m.logger))
	}
	enabled, hasUnknown := throttle.Combine(states)

	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if enabled {
		m.consecutiveUnhealthy++
		m.consecutiveHealthy = 0
	} else {
		m.consecutiveHealthy++
		m.consecutiveUnhealthy = 0
	}
	m.throttleEnabled = enabled
	m.hasUnknownResult = hasUnknown
	m.lastThrottleCheck = now
}

// getOrCreate looks up the status for id, creating one at parallelism 1 on
// first query.
func (m *Manager) getOrCreate(id string) *Status {
	m.statusMu.RLock()
	s, ok := m.statuses[id]
	m.statusMu.RUnlock()
	if ok {
		return s
	}

	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	if s, ok := m.statuses[id]; ok {
		return s
	}
	s = NewWithTimings(m.clk, m.IsThrottleEnabled, m.cfg.AdjustmentFloor, m.cfg.QuietWindow, m.cfg.RunWindow)
	m.statuses[id] = s
	return s
}

// GetStatus implements the manager's core decision loop. It is not safe to
// call concurrently for the same functionID — different ids may
// be called concurrently.
func (m *Manager) GetStatus(functionID string) Result {
	s := m.getOrCreate(functionID)

	if !m.cfg.Enabled {
		return resultFrom(s)
	}

	if !s.CanAdjust() {
		return resultFrom(s)
	}

	throttled := m.IsThrottleEnabled()

	m.cacheMu.Lock()
	hasUnknown := m.hasUnknownResult
	healthy := m.consecutiveHealthy
	unhealthy := m.consecutiveUnhealthy
	m.cacheMu.Unlock()

	if hasUnknown {
		return resultFrom(s)
	}

	switch {
	case !throttled && healthy >= m.cfg.MinConsecutiveIncrease && s.CanIncrease(m.cfg.MaxDegreeOfParallelism):
		s.Increase(m.cfg.MaxDegreeOfParallelism)
	case throttled && unhealthy >= m.cfg.MinConsecutiveDecrease && s.CanDecrease():
		s.Decrease()
	}

	if m.logger != nil {
		m.logger.Info().
			Str("function_id", functionID).
			Int("parallelism", s.CurrentParallelism()).
			Int("outstanding", s.Outstanding()).
			Msg("concurrency: status evaluated")
	}

	return resultFrom(s)
}

func resultFrom(s *Status) Result {
	return Result{
		CurrentParallelism:     s.CurrentParallelism(),
		OutstandingInvocations: s.Outstanding(),
		FetchCount:             s.FetchCount(),
	}
}

// FunctionStarted records the start of one invocation of functionID.
func (m *Manager) FunctionStarted(functionID string) {
	m.getOrCreate(functionID).FunctionStarted()
}

// FunctionCompleted records the completion of one invocation of functionID.
func (m *Manager) FunctionCompleted(functionID string) {
	m.getOrCreate(functionID).FunctionCompleted()
}

// Snapshot is the whole-process read used by the CLI status command and the
// Prometheus exporter.
type Snapshot struct {
	ThrottleEnabled bool
	Functions       map[string]Result
}

// Status aggregates every known function's Result alongside the cached
// throttle verdict, without mutating any adjustment state.
func (m *Manager) Status() Snapshot {
	m.cacheMu.Lock()
	throttled := m.throttleEnabled
	m.cacheMu.Unlock()

	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	out := make(map[string]Result, len(m.statuses))
	for id, s := range m.statuses {
		out[id] = resultFrom(s)
	}
	return Snapshot{ThrottleEnabled: throttled, Functions: out}
}
