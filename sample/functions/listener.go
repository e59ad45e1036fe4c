// Package functions contains sample listener loops that drive a
// concurrency.Manager the way a real host's function triggers would: poll
// for fetch count, start an invocation for each unit of work obtained, and
// report completion. These are demonstration code, not part of the core
// controller.
package functions

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lewta/funcscale/internal/concurrency"
)

// Manager is the subset of concurrency.Manager a listener loop needs.
type Manager interface {
	GetStatus(functionID string) concurrency.Result
	FunctionStarted(functionID string)
	FunctionCompleted(functionID string)
}

// PollInterval is how often a Loop's Run re-checks its fetch count. The
// socket-based triggers in this package plug in as a Loop's Next and are
// polled at the same cadence.
const PollInterval = 200 * time.Millisecond

// Loop repeatedly asks manager for functionID's fetch count and invokes next
// up to that many times concurrently, reporting start/completion around each
// call. It blocks until ctx is cancelled.
type Loop struct {
	FunctionID string
	Manager    Manager
	Next       func(ctx context.Context) error
	Logger     *zerolog.Logger
}

// Run polls Manager at PollInterval and dispatches up to FetchCount
// invocations of Next concurrently. It is the caller's responsibility to
// ensure only one goroutine runs a given Loop for a given FunctionID, since
// the manager's per-function status is not safe for concurrent queries.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status := l.Manager.GetStatus(l.FunctionID)
		for i := 0; i < status.FetchCount; i++ {
			go l.invoke(ctx)
		}
	}
}

func (l *Loop) invoke(ctx context.Context) {
	l.Manager.FunctionStarted(l.FunctionID)
	defer l.Manager.FunctionCompleted(l.FunctionID)

	if err := l.Next(ctx); err != nil && l.Logger != nil {
		l.Logger.Warn().Err(err).Str("function_id", l.FunctionID).Msg("sample invocation failed")
	}
}
