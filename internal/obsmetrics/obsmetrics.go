// Package obsmetrics exposes the controller's live state as Prometheus
// gauges, for hosts that want to scrape instead of (or alongside) the CLI
// watch dashboard.
package obsmetrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lewta/funcscale/internal/concurrency"
	"github.com/lewta/funcscale/internal/health"
)

// Metrics holds the gauges reporting per-function parallelism and the
// process-wide health/throttle verdicts, registered on an isolated registry
// so multiple instances (e.g. in tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	parallelism *prometheus.GaugeVec
	outstanding *prometheus.GaugeVec
	fetchCount  *prometheus.GaugeVec

	throttleEnabled prometheus.Gauge
	healthVerdict   prometheus.Gauge
}

// New creates and registers a Metrics instance on an isolated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		parallelism: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "funcscale_current_parallelism",
			Help: "Current degree of parallelism allowed for a function.",
		}, []string{"function_id"}),

		outstanding: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "funcscale_outstanding_invocations",
			Help: "Number of invocations currently in flight for a function.",
		}, []string{"function_id"}),

		fetchCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "funcscale_fetch_count",
			Help: "Number of additional invocations a function may currently start.",
		}, []string{"function_id"}),

		throttleEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "funcscale_throttle_enabled",
			Help: "1 if the process-wide health throttle is currently engaged, else 0.",
		}),

		healthVerdict: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "funcscale_host_health_verdict",
			Help: "Last combined health verdict: 0=unknown, 1=ok, 2=overloaded.",
		}),
	}

	reg.MustRegister(
		m.parallelism,
		m.outstanding,
		m.fetchCount,
		m.throttleEnabled,
		m.healthVerdict,
	)

	return m
}

// Noop returns a Metrics instance that records but is never scraped, for
// hosts that disable the Prometheus endpoint.
func Noop() *Metrics {
	return New()
}

// RecordSnapshot updates the per-function gauges from a manager snapshot.
func (m *Metrics) RecordSnapshot(snap concurrency.Snapshot) {
	if snap.ThrottleEnabled {
		m.throttleEnabled.Set(1)
	} else {
		m.throttleEnabled.Set(0)
	}
	for id, r := range snap.Functions {
		m.parallelism.WithLabelValues(id).Set(float64(r.CurrentParallelism))
		m.outstanding.WithLabelValues(id).Set(float64(r.OutstandingInvocations))
		m.fetchCount.WithLabelValues(id).Set(float64(r.FetchCount))
	}
}

// RecordVerdict updates the host health verdict gauge.
func (m *Metrics) RecordVerdict(v health.Verdict) {
	switch v {
	case health.Ok:
		m.healthVerdict.Set(1)
	case health.Overloaded:
		m.healthVerdict.Set(2)
	default:
		m.healthVerdict.Set(0)
	}
}

// ServeHTTP starts the Prometheus metrics HTTP endpoint and shuts it down
// gracefully when ctx is cancelled. Call in a goroutine.
func (m *Metrics) ServeHTTP(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	log.Info().Str("addr", srv.Addr).Msg("prometheus metrics endpoint listening")

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("metrics server shutdown error")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server error")
	}
}
