// Package monitor implements a per-process sampler: on a periodic tick it
// samples a procmetrics.Source and appends CPU-percentage and memory
// samples to two bounded ring histories, guarding reads/writes with a lock
// and handing callers independent snapshot copies. It applies no threshold
// gating of its own — that is the host health monitor's job.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lewta/funcscale/internal/procmetrics"
)

// DefaultInterval is the default sampling tick.
const DefaultInterval = time.Second

// Monitor samples one process's CPU and memory on a fixed interval.
type Monitor struct {
	source         procmetrics.Source
	effectiveCores int
	interval       time.Duration
	historySize    int
	logger         *zerolog.Logger

	mu             sync.Mutex
	cpuHistory     []float64
	memHistory     []uint64
	lastSampleTime time.Time
	lastProcTime   time.Duration
	haveBaseline   bool

	cancel    context.CancelFunc
	disposed  bool
	disposeMu sync.Mutex
}

// New creates a monitor bound to source, sampling every interval (or
// DefaultInterval if zero) and normalizing CPU load by effectiveCores.
// historySize is the ring capacity for both histories (DefaultHistorySize if
// zero or negative). logger may be nil.
func New(source procmetrics.Source, effectiveCores int, interval time.Duration, historySize int, logger *zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if effectiveCores < 1 {
		effectiveCores = 1
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Monitor{
		source:         source,
		effectiveCores: effectiveCores,
		interval:       interval,
		historySize:    historySize,
		logger:         logger,
	}
}

// Start begins the periodic tick. It is safe to call once per Monitor;
// call Dispose (directly, or by cancelling ctx) to stop it.
func (m *Monitor) Start(ctx context.Context) {
	tickCtx, cancel := context.WithCancel(ctx)
	m.disposeMu.Lock()
	m.cancel = cancel
	m.disposeMu.Unlock()

	go m.run(tickCtx)
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick samples the source once. Any failure (an exited child process, a
// transient OS error) is swallowed — the tick simply skips whichever
// history it could not sample this round.
func (m *Monitor) tick() {
	now := time.Now()

	m.mu.Lock()
	interval := now.Sub(m.lastSampleTime)
	haveBaseline := m.haveBaseline
	m.mu.Unlock()

	if procTime, err := m.source.ProcessorTime(); err == nil {
		if haveBaseline && interval > 0 {
			deltaMs := float64((procTime - m.lastProcTime).Milliseconds())
			denom := float64(m.effectiveCores) * float64(interval.Milliseconds())
			pct := 0.0
			if denom > 0 {
				pct = roundFloat(deltaMs / denom * 100)
			}
			m.mu.Lock()
			m.cpuHistory = appendRing(m.cpuHistory, pct, m.historySize)
			m.mu.Unlock()
		}
		m.mu.Lock()
		m.lastProcTime = procTime
		m.lastSampleTime = now
		m.haveBaseline = true
		m.mu.Unlock()
	} else if m.logger != nil {
		m.logger.Debug().Err(err).Msg("monitor: processor time sample failed, skipping")
	}

	if memBytes, err := m.source.MemoryBytes(); err == nil {
		m.mu.Lock()
		m.memHistory = appendRing(m.memHistory, memBytes, m.historySize)
		m.mu.Unlock()
	} else if m.logger != nil {
		m.logger.Debug().Err(err).Msg("monitor: memory sample failed, skipping")
	}
}

func roundFloat(v float64) float64 {
	if v < 0 {
		return 0
	}
	return float64(int64(v + 0.5))
}

// Stats returns an immutable copy of both histories.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	cpuCopy := make([]float64, len(m.cpuHistory))
	copy(cpuCopy, m.cpuHistory)
	memCopy := make([]uint64, len(m.memHistory))
	copy(memCopy, m.memHistory)

	return Stats{CPUPercent: cpuCopy, MemoryBytes: memCopy}
}

// Dispose stops the ticker. It is idempotent.
func (m *Monitor) Dispose() {
	m.disposeMu.Lock()
	defer m.disposeMu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true
	if m.cancel != nil {
		m.cancel()
	}
}
