package throttle

import (
	"github.com/rs/zerolog"

	"github.com/lewta/funcscale/internal/health"
)

// HealthProvider wraps a health.Monitor and maps its verdict onto a throttle
// State: Ok -> Disabled, Overloaded -> Enabled, Unknown -> Unknown.
type HealthProvider struct {
	monitor *health.Monitor
}

// NewHealthProvider wraps monitor as a Provider.
func NewHealthProvider(monitor *health.Monitor) *HealthProvider {
	return &HealthProvider{monitor: monitor}
}

// Status implements Provider.
func (p *HealthProvider) Status(logger *zerolog.Logger) State {
	switch p.monitor.Status(logger) {
	case health.Ok:
		return Disabled
	case health.Overloaded:
		return Enabled
	default:
		return Unknown
	}
}
