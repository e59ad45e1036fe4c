// Package health implements the host health monitor: one process monitor
// for the host plus one per registered child, aggregated against CPU and
// memory thresholds into a single Verdict.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lewta/funcscale/internal/hostenv"
	"github.com/lewta/funcscale/internal/monitor"
	"github.com/lewta/funcscale/internal/procmetrics"
)

const (
	// MinSampleCount is the window size used to average a process's recent
	// history.
	MinSampleCount = 5
	// CPUThresholdPct is the aggregate CPU overload threshold, expressed as
	// a percentage.
	CPUThresholdPct = 80.0
	// DefaultPerCoreGiB is the typical per-core memory budget used to
	// derive the byte threshold.
	DefaultPerCoreGiB = 3.5
	// MemoryThresholdFraction is the fraction of the per-core budget that
	// counts as overloaded.
	MemoryThresholdFraction = 0.90

	bytesPerGiB = 1024 * 1024 * 1024
)

// Monitor owns the host's own process monitor plus one per registered child
// and produces an aggregate Verdict on demand.
type Monitor struct {
	hostMonitor    *monitor.Monitor
	effectiveCores int
	evaluateMemory bool
	memThreshold   uint64
	logger         *zerolog.Logger

	sampleInterval  time.Duration
	historySize     int
	minSampleCount  int
	cpuThresholdPct float64
	memThresholdFrc float64

	mu       sync.RWMutex
	children map[int32]*monitor.Monitor
}

// Options carries the sampling and threshold overrides New accepts beyond
// the plan/core wiring. Any field left at its zero value falls back to the
// matching package default.
type Options struct {
	SampleInterval          time.Duration
	SampleHistorySize       int
	MinSampleCount          int
	CPUThresholdPct         float64
	MemoryThresholdFraction float64
	PerCoreGiB              float64
}

// New constructs a host health monitor. hostSource reads the host process's
// own CPU/memory; effectiveCores and planDetector supply the hosting
// environment's core count and plan. opts.PerCoreGiB is the plan-dependent
// memory budget per effective core (use DefaultPerCoreGiB when the host
// doesn't have a more specific figure); every other Options field falls
// back to its package default when zero.
func New(hostSource procmetrics.Source, effectiveCores hostenv.EffectiveCoresFunc, planDetector hostenv.PlanDetector, opts Options, logger *zerolog.Logger) *Monitor {
	cores := 1
	if effectiveCores != nil {
		if c := effectiveCores(); c > 0 {
			cores = c
		}
	}

	var plan hostenv.PlanInfo
	if planDetector != nil {
		plan = planDetector.Detect()
	}
	evaluateMemory := plan.Metered || plan.SharedTenant

	perCoreGiB := opts.PerCoreGiB
	if perCoreGiB <= 0 {
		perCoreGiB = DefaultPerCoreGiB
	}
	memThresholdFrc := opts.MemoryThresholdFraction
	if memThresholdFrc <= 0 {
		memThresholdFrc = MemoryThresholdFraction
	}
	threshold := uint64(float64(cores) * perCoreGiB * bytesPerGiB * memThresholdFrc)

	sampleInterval := opts.SampleInterval
	if sampleInterval <= 0 {
		sampleInterval = monitor.DefaultInterval
	}
	historySize := opts.SampleHistorySize
	if historySize <= 0 {
		historySize = monitor.DefaultHistorySize
	}
	minSampleCount := opts.MinSampleCount
	if minSampleCount <= 0 {
		minSampleCount = MinSampleCount
	}
	cpuThresholdPct := opts.CPUThresholdPct
	if cpuThresholdPct <= 0 {
		cpuThresholdPct = CPUThresholdPct
	}

	return &Monitor{
		hostMonitor:     monitor.New(hostSource, cores, sampleInterval, historySize, logger),
		effectiveCores:  cores,
		evaluateMemory:  evaluateMemory,
		memThreshold:    threshold,
		logger:          logger,
		sampleInterval:  sampleInterval,
		historySize:     historySize,
		minSampleCount:  minSampleCount,
		cpuThresholdPct: cpuThresholdPct,
		memThresholdFrc: memThresholdFrc,
		children:        make(map[int32]*monitor.Monitor),
	}
}

// Start begins sampling the host process. Call Register separately for
// each child process to track.
func (m *Monitor) Start(ctx context.Context) {
	m.hostMonitor.Start(ctx)
}

// Register adds a child process monitor, starting it immediately. It is
// concurrency-safe to call alongside Status and other Register/Unregister
// calls.
func (m *Monitor) Register(ctx context.Context, handle procmetrics.Handle, source procmetrics.Source) {
	child := monitor.New(source, m.effectiveCores, m.sampleInterval, m.historySize, m.logger)
	child.Start(ctx)

	m.mu.Lock()
	if existing, ok := m.children[handle.PID()]; ok {
		existing.Dispose()
	}
	m.children[handle.PID()] = child
	m.mu.Unlock()
}

// Unregister disposes and removes the child monitor for handle, if present.
// Disposal is idempotent.
func (m *Monitor) Unregister(handle procmetrics.Handle) {
	m.mu.Lock()
	child, ok := m.children[handle.PID()]
	delete(m.children, handle.PID())
	m.mu.Unlock()

	if ok {
		child.Dispose()
	}
}

// Status computes the aggregate health verdict. logger may be nil and
// overrides the monitor's own logger for this call only.
func (m *Monitor) Status(logger *zerolog.Logger) Verdict {
	if logger == nil {
		logger = m.logger
	}

	hostStats := m.hostMonitor.Stats()

	m.mu.RLock()
	childMonitors := make([]*monitor.Monitor, 0, len(m.children))
	for _, c := range m.children {
		childMonitors = append(childMonitors, c)
	}
	m.mu.RUnlock()

	childStats := make([]monitor.Stats, 0, len(childMonitors))
	for _, c := range childMonitors {
		childStats = append(childStats, c.Stats())
	}

	signals := make([]Verdict, 0, 2)
	signals = append(signals, cpuVerdict(hostStats, childStats, m.minSampleCount, m.cpuThresholdPct))
	if m.evaluateMemory {
		signals = append(signals, memoryVerdict(hostStats, childStats, m.memThreshold, m.minSampleCount))
	}

	verdict := Combine(signals)
	if logger != nil && verdict == Overloaded {
		logger.Warn().Str("verdict", verdict.String()).Msg("health: host overloaded")
	}
	return verdict
}

func cpuVerdict(host monitor.Stats, children []monitor.Stats, minSampleCount int, cpuThresholdPct float64) Verdict {
	hostAvg, ok := recentAverage(host.CPUPercent, minSampleCount)
	if !ok {
		return Unknown
	}
	aggregate := hostAvg
	for _, c := range children {
		if avg, ok := recentAverage(c.CPUPercent, minSampleCount); ok {
			aggregate += avg
		}
	}
	if roundHalfUp(aggregate) >= cpuThresholdPct {
		return Overloaded
	}
	return Ok
}

func memoryVerdict(host monitor.Stats, children []monitor.Stats, threshold uint64, minSampleCount int) Verdict {
	hostAvg, ok := recentAverageUint(host.MemoryBytes, minSampleCount)
	if !ok {
		return Unknown
	}
	aggregate := hostAvg
	for _, c := range children {
		if avg, ok := recentAverageUint(c.MemoryBytes, minSampleCount); ok {
			aggregate += avg
		}
	}
	if uint64(roundHalfUp(aggregate)) >= threshold {
		return Overloaded
	}
	return Ok
}

func recentAverage(vals []float64, n int) (float64, bool) {
	if len(vals) < n {
		return 0, false
	}
	window := vals[len(vals)-n:]
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(n), true
}

func recentAverageUint(vals []uint64, n int) (float64, bool) {
	if len(vals) < n {
		return 0, false
	}
	window := vals[len(vals)-n:]
	sum := 0.0
	for _, v := range window {
		sum += float64(v)
	}
	return sum / float64(n), true
}

func roundHalfUp(v float64) float64 {
	if v < 0 {
		return 0
	}
	return float64(int64(v + 0.5))
}
