package hostenv

import "github.com/shirou/gopsutil/v3/cpu"

// Dedicated is a PlanDetector for a non-metered, non-shared-tenant host — the
// common case for the sample host and for tests that do not care about plan
// detection. It reports no plan pressure at all, so the host health monitor
// never evaluates memory for it.
type Dedicated struct{}

// Detect implements PlanDetector.
func (Dedicated) Detect() PlanInfo {
	return PlanInfo{}
}

// TrueCores returns an EffectiveCoresFunc backed by the host's logical CPU
// count, as reported by gopsutil. Shared-tenant hosts should instead supply
// a function that always returns 1.
func TrueCores() EffectiveCoresFunc {
	return func() int {
		n, err := cpu.Counts(true)
		if err != nil || n < 1 {
			return 1
		}
		return n
	}
}
