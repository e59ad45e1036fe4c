package acceptance

import (
	"fmt"

	"github.com/cucumber/godog"

	"github.com/lewta/funcscale/internal/throttle"
)

func registerCanarySteps(ctx *godog.ScenarioContext, w **worldState) {
	ctx.Step(`^a canary clocked at the start of a ten-interval window$`, func() error {
		(*w).canary = throttle.NewCanary(nil, (*w).clk, 0, 0)
		return nil
	})
	ctx.Step(`^(\d+) of 10 expected ticks are recorded$`, func(observed int) error {
		world := *w
		world.clk.Advance(10 * throttle.Interval)
		for i := 0; i < observed; i++ {
			world.canary.RecordTick()
		}
		return nil
	})
	ctx.Step(`^the canary status should be "([^"]+)"$`, func(want string) error {
		got := (*w).canary.Status(nil).String()
		if got != want {
			return fmt.Errorf("canary status = %q, want %q", got, want)
		}
		return nil
	})
}
