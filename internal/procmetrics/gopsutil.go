package procmetrics

import (
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// GopsutilSource reads CPU and memory for a single OS process via gopsutil.
// A fresh process.Process handle is resolved on every call, matching the
// "refresh any cached OS view before each read" contract in Source.
type GopsutilSource struct {
	pid int32
}

// NewGopsutilSource builds a Source for the process identified by pid.
func NewGopsutilSource(pid int32) *GopsutilSource {
	return &GopsutilSource{pid: pid}
}

// PID returns the process id this source reads from.
func (s *GopsutilSource) PID() int32 { return s.pid }

// ProcessorTime returns total user+system CPU time consumed since the
// process started.
func (s *GopsutilSource) ProcessorTime() (time.Duration, error) {
	p, err := process.NewProcess(s.pid)
	if err != nil {
		return 0, err
	}
	times, err := p.Times()
	if err != nil {
		return 0, err
	}
	totalSeconds := times.User + times.System
	return time.Duration(totalSeconds * float64(time.Second)), nil
}

// MemoryBytes returns the process's current resident set size in bytes.
func (s *GopsutilSource) MemoryBytes() (uint64, error) {
	p, err := process.NewProcess(s.pid)
	if err != nil {
		return 0, err
	}
	mi, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mi.RSS, nil
}
