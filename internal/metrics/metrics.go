// Package metrics exposes engine activity as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/nipe/internal/logger"
)

const namespace = "nipe"

// Metrics holds the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Starts            *prometheus.CounterVec
	Stops             *prometheus.CounterVec
	Rotations         *prometheus.CounterVec
	BootstrapAttempts prometheus.Counter
	BootstrapDuration prometheus.Histogram
	Running           prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		Starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_starts_total",
			Help:      "Engine start attempts by result",
		}, []string{"result"}),

		Stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_stops_total",
			Help:      "Engine stop attempts by result",
		}, []string{"result"}),

		Rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rotations_total",
			Help:      "Identity rotation requests by result",
		}, []string{"result"}),

		BootstrapAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_attempts_total",
			Help:      "Verification round trips made while waiting for bootstrap",
		}),

		BootstrapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bootstrap_duration_seconds",
			Help:      "Time from process spawn to a verified proxy path",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 90},
		}),

		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_running",
			Help:      "1 while the supervised proxy is verified and the kill switch is up",
		}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Starts, m.Stops, m.Rotations,
		m.BootstrapAttempts, m.BootstrapDuration, m.Running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStart records a start outcome and the running gauge.
func (m *Metrics) ObserveStart(err error) {
	if m == nil {
		return
	}
	m.Starts.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.Running.Set(1)
	} else {
		m.Running.Set(0)
	}
}

// ObserveStop records a stop outcome. The engine is considered down after
// any stop.
func (m *Metrics) ObserveStop(err error) {
	if m == nil {
		return
	}
	m.Stops.WithLabelValues(result(err)).Inc()
	m.Running.Set(0)
}

// ObserveRotation records a rotation outcome.
func (m *Metrics) ObserveRotation(err error) {
	if m == nil {
		return
	}
	m.Rotations.WithLabelValues(result(err)).Inc()
}

// ObserveBootstrapAttempt counts one verification round trip.
func (m *Metrics) ObserveBootstrapAttempt() {
	if m == nil {
		return
	}
	m.BootstrapAttempts.Inc()
}

// ObserveBootstrap records how long bootstrap verification took.
func (m *Metrics) ObserveBootstrap(d time.Duration) {
	if m == nil {
		return
	}
	m.BootstrapDuration.Observe(d.Seconds())
}

// Serve exposes /metrics on listen until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer logger.Recover("metricsServer")
		logger.Info("Metrics listening on %s", listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
