// Package throttle implements the pluggable throttle-provider signal
// sources: a health-derived provider and a thread-starvation canary,
// combined by the concurrency manager with a set-union rule.
package throttle

import "github.com/rs/zerolog"

// State is the three-valued throttle signal a Provider reports.
type State int

const (
	Unknown State = iota
	Enabled
	Disabled
)

func (s State) String() string {
	switch s {
	case Enabled:
		return "Enabled"
	case Disabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// Provider is the throttle extension point. Providers never return an
// error: any internal failure must surface as Unknown.
type Provider interface {
	Status(logger *zerolog.Logger) State
}

// Combine applies the manager's set-union rule: any Enabled in the set
// means throttling is active; any Unknown suppresses adjustments entirely
// regardless of the rest of the set.
func Combine(states []State) (enabled bool, hasUnknown bool) {
	for _, s := range states {
		switch s {
		case Enabled:
			enabled = true
		case Unknown:
			hasUnknown = true
		}
	}
	return enabled, hasUnknown
}
