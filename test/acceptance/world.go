package acceptance

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lewta/funcscale/internal/clock"
	"github.com/lewta/funcscale/internal/concurrency"
	"github.com/lewta/funcscale/internal/throttle"
)

// adjustmentSpacing exceeds both the per-function adjustment floor and the
// velocity run window, so every adjustment cycle in a scenario lands exactly
// one step away from the last: no compounding, no floor stalls.
const adjustmentSpacing = concurrency.RunWindow + concurrency.AdjustmentFloor

type settableProvider struct{ state throttle.State }

func (p *settableProvider) Status(*zerolog.Logger) throttle.State { return p.state }

type worldState struct {
	clk      *clock.Fake
	provider *settableProvider
	mgr      *concurrency.Manager
	canary   *throttle.Canary
	result   concurrency.Result
}

func newWorldState() *worldState {
	return &worldState{clk: clock.NewFake(time.Unix(0, 0))}
}

func parseThrottleState(s string) (throttle.State, error) {
	switch s {
	case "disabled":
		return throttle.Disabled, nil
	case "enabled":
		return throttle.Enabled, nil
	case "unknown":
		return throttle.Unknown, nil
	default:
		return throttle.Unknown, fmt.Errorf("unrecognized throttle state %q", s)
	}
}

func (w *worldState) newManager(stateName string) error {
	state, err := parseThrottleState(stateName)
	if err != nil {
		return err
	}
	w.provider = &settableProvider{state: state}
	cfg := concurrency.Config{
		Enabled:                true,
		MaxDegreeOfParallelism: 100,
		MinConsecutiveIncrease: concurrency.MinConsecutiveIncrease,
		MinConsecutiveDecrease: concurrency.MinConsecutiveDecrease,
	}
	w.mgr = concurrency.New(cfg, []throttle.Provider{w.provider}, w.clk, nil)
	return nil
}

func (w *worldState) flipProvider(stateName string) error {
	state, err := parseThrottleState(stateName)
	if err != nil {
		return err
	}
	w.provider.state = state
	return nil
}

// poll advances the clock past adjustmentSpacing n times, optionally
// recording one invocation start before each poll, and keeps the last
// Result for the Then steps.
func (w *worldState) poll(functionID string, n int, withInvocation bool) {
	for i := 0; i < n; i++ {
		if withInvocation {
			w.mgr.FunctionStarted(functionID)
		}
		w.clk.Advance(adjustmentSpacing)
		w.result = w.mgr.GetStatus(functionID)
	}
}

func (w *worldState) healthyAdjustmentCycles(functionID string, n int) error {
	w.poll(functionID, n, true)
	return nil
}

func (w *worldState) unhealthyAdjustmentCycles(functionID string, n int) error {
	w.poll(functionID, n, false)
	return nil
}

func (w *worldState) statusPollsWithNoInvocations(functionID string, n int) error {
	w.poll(functionID, n, false)
	return nil
}

func (w *worldState) parallelismShouldBe(functionID string, want int) error {
	if w.result.CurrentParallelism != want {
		return fmt.Errorf("parallelism for %q = %d, want %d", functionID, w.result.CurrentParallelism, want)
	}
	return nil
}

func (w *worldState) fetchCountShouldBe(functionID string, want int) error {
	if w.result.FetchCount != want {
		return fmt.Errorf("fetch count for %q = %d, want %d", functionID, w.result.FetchCount, want)
	}
	return nil
}
