package obsmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lewta/funcscale/internal/concurrency"
	"github.com/lewta/funcscale/internal/health"
)

func TestNew_NotNilFields(t *testing.T) {
	m := New()
	if m.parallelism == nil || m.outstanding == nil || m.fetchCount == nil {
		t.Fatal("per-function gauges are nil")
	}
	if m.throttleEnabled == nil || m.healthVerdict == nil {
		t.Fatal("host gauges are nil")
	}
}

func TestNoop_DoesNotPanic(t *testing.T) {
	m := Noop()
	m.RecordSnapshot(concurrency.Snapshot{
		ThrottleEnabled: true,
		Functions: map[string]concurrency.Result{
			"fn-a": {CurrentParallelism: 4, OutstandingInvocations: 2, FetchCount: 2},
		},
	})
	m.RecordVerdict(health.Overloaded)
}

func TestRecordSnapshot_SetsGaugeValues(t *testing.T) {
	m := New()
	m.RecordSnapshot(concurrency.Snapshot{
		ThrottleEnabled: false,
		Functions: map[string]concurrency.Result{
			"fn-a": {CurrentParallelism: 8, OutstandingInvocations: 3, FetchCount: 5},
		},
	})

	if got := testutil.ToFloat64(m.parallelism.WithLabelValues("fn-a")); got != 8 {
		t.Errorf("parallelism gauge = %v, want 8", got)
	}
	if got := testutil.ToFloat64(m.outstanding.WithLabelValues("fn-a")); got != 3 {
		t.Errorf("outstanding gauge = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.fetchCount.WithLabelValues("fn-a")); got != 5 {
		t.Errorf("fetch count gauge = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.throttleEnabled); got != 0 {
		t.Errorf("throttle gauge = %v, want 0", got)
	}
}

func TestRecordVerdict_MapsEnum(t *testing.T) {
	cases := []struct {
		v    health.Verdict
		want float64
	}{
		{health.Unknown, 0},
		{health.Ok, 1},
		{health.Overloaded, 2},
	}
	for _, c := range cases {
		m := New()
		m.RecordVerdict(c.v)
		if got := testutil.ToFloat64(m.healthVerdict); got != c.want {
			t.Errorf("verdict %v: gauge = %v, want %v", c.v, got, c.want)
		}
	}
}
