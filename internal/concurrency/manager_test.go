package concurrency

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lewta/funcscale/internal/clock"
	"github.com/lewta/funcscale/internal/throttle"
)

// fakeProvider always reports the same throttle.State.
type fakeProvider struct{ state throttle.State }

func (p fakeProvider) Status(*zerolog.Logger) throttle.State { return p.state }

func TestDefaultConfig_MatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enabled {
		t.Error("DefaultConfig().Enabled should be false")
	}
	if cfg.MaxDegreeOfParallelism != DefaultMaxDegreeOfParallelism {
		t.Errorf("MaxDegreeOfParallelism = %d, want %d", cfg.MaxDegreeOfParallelism, DefaultMaxDegreeOfParallelism)
	}
}

func TestNew_ClampsInvalidConfigToDefaults(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	m := New(Config{MaxDegreeOfParallelism: -1, MinConsecutiveIncrease: 0, MinConsecutiveDecrease: -5}, nil, clk, nil)
	if m.cfg.MaxDegreeOfParallelism != DefaultMaxDegreeOfParallelism {
		t.Errorf("MaxDegreeOfParallelism = %d, want default", m.cfg.MaxDegreeOfParallelism)
	}
	if m.cfg.MinConsecutiveIncrease != MinConsecutiveIncrease {
		t.Errorf("MinConsecutiveIncrease = %d, want default", m.cfg.MinConsecutiveIncrease)
	}
	if m.cfg.MinConsecutiveDecrease != MinConsecutiveDecrease {
		t.Errorf("MinConsecutiveDecrease = %d, want default", m.cfg.MinConsecutiveDecrease)
	}
}

func TestGetStatus_DisabledNeverAdjusts(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	m := New(Config{Enabled: false, MaxDegreeOfParallelism: 100, MinConsecutiveIncrease: 1, MinConsecutiveDecrease: 1}, nil, clk, nil)

	for i := 0; i < 5; i++ {
		clk.Advance(time.Hour)
		r := m.GetStatus("fn")
		if r.CurrentParallelism != 1 {
			t.Fatalf("iteration %d: CurrentParallelism = %d, want 1 while disabled", i, r.CurrentParallelism)
		}
	}
}

func TestGetStatus_UnknownProviderSuppressesAdjustment(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	providers := []throttle.Provider{fakeProvider{state: throttle.Unknown}}
	m := New(Config{Enabled: true, MaxDegreeOfParallelism: 100, MinConsecutiveIncrease: 1, MinConsecutiveDecrease: 1}, providers, clk, nil)

	for i := 0; i < 3; i++ {
		clk.Advance(10 * time.Second)
		r := m.GetStatus("fn")
		if r.CurrentParallelism != 1 {
			t.Fatalf("iteration %d: CurrentParallelism = %d, want 1 held at Unknown", i, r.CurrentParallelism)
		}
	}
}

func TestGetStatus_IncreasesAfterConsecutiveHealthyPolls(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	providers := []throttle.Provider{fakeProvider{state: throttle.Disabled}}
	m := New(Config{Enabled: true, MaxDegreeOfParallelism: 100, MinConsecutiveIncrease: 3, MinConsecutiveDecrease: 3}, providers, clk, nil)

	// Establishes the status at t=0 with one outstanding invocation, so the
	// high-water gate (highWater >= current) is already satisfied once the
	// adjustment floor has elapsed.
	m.FunctionStarted("fn")

	var r Result
	for i := 0; i < 3; i++ {
		clk.Advance(AdjustmentFloor + time.Second)
		r = m.GetStatus("fn")
	}

	if r.CurrentParallelism <= 1 {
		t.Errorf("CurrentParallelism = %d, want > 1 after sustained healthy polls", r.CurrentParallelism)
	}
}

func TestGetStatus_DecreasesAfterConsecutiveUnhealthyPolls(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	providers := []throttle.Provider{fakeProvider{state: throttle.Enabled}}
	m := New(Config{Enabled: true, MaxDegreeOfParallelism: 100, MinConsecutiveIncrease: 1, MinConsecutiveDecrease: 2}, providers, clk, nil)

	// Bootstrap above parallelism 1 first, using a healthy provider swap.
	m.providers = []throttle.Provider{fakeProvider{state: throttle.Disabled}}
	clk.Advance(AdjustmentFloor + time.Second)
	m.FunctionStarted("fn")
	m.GetStatus("fn")
	clk.Advance(AdjustmentFloor + time.Second)
	m.FunctionStarted("fn")
	r := m.GetStatus("fn")
	if r.CurrentParallelism <= 1 {
		t.Fatalf("setup: CurrentParallelism = %d, want > 1 before testing decrease", r.CurrentParallelism)
	}
	before := r.CurrentParallelism

	// Now flip to unhealthy and drive MinConsecutiveDecrease unhealthy polls.
	m.providers = providers
	for i := 0; i < 2; i++ {
		clk.Advance(AdjustmentFloor + time.Second)
		m.GetStatus("fn")
	}

	after := m.GetStatus("fn")
	if after.CurrentParallelism >= before {
		t.Errorf("CurrentParallelism = %d, want < %d after sustained unhealthy polls", after.CurrentParallelism, before)
	}
}

func TestGetStatus_FloorsAtOne(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	providers := []throttle.Provider{fakeProvider{state: throttle.Enabled}}
	m := New(Config{Enabled: true, MaxDegreeOfParallelism: 100, MinConsecutiveIncrease: 1, MinConsecutiveDecrease: 1}, providers, clk, nil)

	for i := 0; i < 5; i++ {
		clk.Advance(AdjustmentFloor + time.Second)
		r := m.GetStatus("fn")
		if r.CurrentParallelism < 1 {
			t.Fatalf("iteration %d: CurrentParallelism = %d, must never drop below 1", i, r.CurrentParallelism)
		}
	}
}

func TestStatus_SnapshotsAllKnownFunctions(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	m := New(DefaultConfig(), nil, clk, nil)

	m.GetStatus("a")
	m.GetStatus("b")

	snap := m.Status()
	if len(snap.Functions) != 2 {
		t.Fatalf("Status().Functions len = %d, want 2", len(snap.Functions))
	}
	if _, ok := snap.Functions["a"]; !ok {
		t.Error("missing function 'a' in snapshot")
	}
	if _, ok := snap.Functions["b"]; !ok {
		t.Error("missing function 'b' in snapshot")
	}
}

func TestFunctionStartedCompleted_ForwardToStatus(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	m := New(DefaultConfig(), nil, clk, nil)

	m.FunctionStarted("fn")
	m.FunctionStarted("fn")
	if got := m.GetStatus("fn").OutstandingInvocations; got != 2 {
		t.Errorf("OutstandingInvocations = %d, want 2", got)
	}
	m.FunctionCompleted("fn")
	if got := m.GetStatus("fn").OutstandingInvocations; got != 1 {
		t.Errorf("OutstandingInvocations = %d, want 1", got)
	}
}
