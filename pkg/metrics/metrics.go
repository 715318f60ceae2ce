// Package metrics exposes Prometheus instrumentation of sweeps, notifications and provider calls
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/logger"
)

// Metrics holds all Prometheus metrics of the relay
type Metrics struct {
	SweepsTotal        *prometheus.CounterVec   // labels: task, outcome
	TicksDropped       *prometheus.CounterVec   // labels: task
	SweepDuration      *prometheus.HistogramVec // labels: task
	NotificationsTotal *prometheus.CounterVec   // labels: kind, outcome
	ProviderErrors     *prometheus.CounterVec   // labels: op, kind
	SeenEntries        prometheus.Gauge
}

// New creates the metrics and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexwatch_sweeps_total",
			Help: "Finished sweeps by task and outcome",
		}, []string{"task", "outcome"}),
		TicksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexwatch_ticks_dropped_total",
			Help: "Ticks dropped because the previous sweep was still running",
		}, []string{"task"}),
		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dexwatch_sweep_duration_seconds",
			Help:    "Sweep wall time",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"task"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexwatch_notifications_total",
			Help: "Notifications by kind and delivery outcome",
		}, []string{"kind", "outcome"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexwatch_provider_errors_total",
			Help: "Failed market data calls by operation and error kind",
		}, []string{"op", "kind"}),
		SeenEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dexwatch_seen_entries",
			Help: "Identifiers in the discovery seen-set after the last sweep",
		}),
	}

	reg.MustRegister(
		m.SweepsTotal,
		m.TicksDropped,
		m.SweepDuration,
		m.NotificationsTotal,
		m.ProviderErrors,
		m.SeenEntries,
	)

	return m
}

func (m *Metrics) ObserveSweep(task string, duration time.Duration, err error) {
	m.SweepsTotal.WithLabelValues(task, outcome(err)).Inc()
	m.SweepDuration.WithLabelValues(task).Observe(duration.Seconds())
}

func (m *Metrics) TickDropped(task string) {
	m.TicksDropped.WithLabelValues(task).Inc()
}

func (m *Metrics) NotificationSent(kind string, err error) {
	m.NotificationsTotal.WithLabelValues(kind, outcome(err)).Inc()
}

func (m *Metrics) ProviderFailed(op string, err error) {
	m.ProviderErrors.WithLabelValues(op, core.ErrorKind(err)).Inc()
}

func (m *Metrics) SetSeenEntries(n int) {
	m.SeenEntries.Set(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Serve exposes gatherer on addr under /metrics until ctx is done
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.WithField("address", addr).Info("metrics endpoint listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
