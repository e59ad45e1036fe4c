package acceptance

import (
	"context"

	"github.com/cucumber/godog"
)

func registerConcurrencySteps(ctx *godog.ScenarioContext, w **worldState) {
	ctx.Step(`^a concurrency manager with a (disabled|enabled|unknown) throttle provider$`, func(state string) error {
		return (*w).newManager(state)
	})
	ctx.Step(`^the throttle provider flips to (disabled|enabled|unknown)$`, func(state string) error {
		return (*w).flipProvider(state)
	})
	ctx.Step(`^function "([^"]+)" receives (\d+) healthy adjustment cycles?$`, func(id string, n int) error {
		return (*w).healthyAdjustmentCycles(id, n)
	})
	ctx.Step(`^function "([^"]+)" receives (\d+) unhealthy adjustment cycles?$`, func(id string, n int) error {
		return (*w).unhealthyAdjustmentCycles(id, n)
	})
	ctx.Step(`^function "([^"]+)" receives (\d+) status polls? with no invocations$`, func(id string, n int) error {
		return (*w).statusPollsWithNoInvocations(id, n)
	})
	ctx.Step(`^the parallelism for "([^"]+)" should be (\d+)$`, func(id string, want int) error {
		return (*w).parallelismShouldBe(id, want)
	})
	ctx.Step(`^the fetch count for "([^"]+)" should be (\d+)$`, func(id string, want int) error {
		return (*w).fetchCountShouldBe(id, want)
	})
}

// InitializeScenario wires every *.feature step in this package to a fresh
// worldState per scenario.
func InitializeScenario(ctx *godog.ScenarioContext) {
	var w *worldState
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		w = newWorldState()
		return c, nil
	})

	registerConcurrencySteps(ctx, &w)
	registerCanarySteps(ctx, &w)
}
