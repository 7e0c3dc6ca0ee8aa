// Package metrics exposes daemon counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "inno"

// Metrics holds the daemon's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	observations     *prometheus.CounterVec
	renders          *prometheus.CounterVec
	hides            *prometheus.CounterVec
	reloads          *prometheus.CounterVec
	listenerRestarts *prometheus.CounterVec
	percentage       prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Observations produced by the event matcher.",
		}, []string{"rule"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Frames handed to the renderer.",
		}, []string{"reason"}),
		hides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hides_total",
			Help:      "Notifications hidden.",
		}, []string{"reason"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Configuration reloads.",
		}, []string{"result"}),
		listenerRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_restarts_total",
			Help:      "Bus listener restarts after transport errors.",
		}, []string{"bus"}),
		percentage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_percentage",
			Help:      "Last observed battery percentage.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.observations,
		m.renders,
		m.hides,
		m.reloads,
		m.listenerRestarts,
		m.percentage,
	)
	return m
}

func (m *Metrics) Observation(rule string) {
	if m == nil {
		return
	}
	m.observations.WithLabelValues(rule).Inc()
}

func (m *Metrics) Render(reason string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(reason).Inc()
}

func (m *Metrics) Hide(reason string) {
	if m == nil {
		return
	}
	m.hides.WithLabelValues(reason).Inc()
}

// Reload records a reload attempt; result is "ok" or "error".
func (m *Metrics) Reload(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}

func (m *Metrics) ListenerRestart(bus string) {
	if m == nil {
		return
	}
	m.listenerRestarts.WithLabelValues(bus).Inc()
}

func (m *Metrics) Percentage(pct float64) {
	if m == nil {
		return
	}
	m.percentage.Set(pct)
}

// Handler serves /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve exposes Handler on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log logrus.FieldLogger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
