package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives one observation per finished reconciliation.
type Recorder interface {
	ObserveReconcile(provider, action, result string, attempts int, elapsed time.Duration)
}

// Nop discards observations.
type Nop struct{}

func (Nop) ObserveReconcile(string, string, string, int, time.Duration) {}

// Prometheus records reconciliation metrics into a Prometheus registry.
type Prometheus struct {
	gatherer        prometheus.Gatherer
	reconcileTotal  *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	attempts        *prometheus.HistogramVec
	reconcileDurSec *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them on reg. A nil reg
// uses a fresh registry with Go and process collectors.
func NewPrometheus(reg *prometheus.Registry) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Prometheus{
		gatherer: reg,
		reconcileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kvreconciler",
				Subsystem: "reconcile",
				Name:      "total",
				Help:      "Reconciliations by provider, action and result (ok, or the failure kind).",
			},
			[]string{"provider", "action", "result"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kvreconciler",
				Subsystem: "reconcile",
				Name:      "retries_total",
				Help:      "Attempts beyond the first, caused by concurrency token mismatches.",
			},
			[]string{"provider"},
		),
		attempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kvreconciler",
				Subsystem: "reconcile",
				Name:      "attempts",
				Help:      "Read-decide-apply attempts per reconciliation.",
				Buckets:   []float64{1, 2, 3, 5, 8, 13},
			},
			[]string{"provider"},
		),
		reconcileDurSec: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kvreconciler",
				Subsystem: "reconcile",
				Name:      "duration_seconds",
				Help:      "Wall time of one reconciliation including provider resolution.",
				Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"provider"},
		),
	}

	if err := m.register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Prometheus) register(reg prometheus.Registerer) error {
	if err := registerOrReuseCounterVec(reg, &m.reconcileTotal); err != nil {
		return fmt.Errorf("register reconcile counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.retriesTotal); err != nil {
		return fmt.Errorf("register retries counter: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.attempts); err != nil {
		return fmt.Errorf("register attempts histogram: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.reconcileDurSec); err != nil {
		return fmt.Errorf("register duration histogram: %w", err)
	}
	return nil
}

// ObserveReconcile implements Recorder.
func (m *Prometheus) ObserveReconcile(provider, action, result string, attempts int, elapsed time.Duration) {
	if action == "" {
		action = "none"
	}
	m.reconcileTotal.WithLabelValues(provider, action, result).Inc()
	if attempts > 1 {
		m.retriesTotal.WithLabelValues(provider).Add(float64(attempts - 1))
	}
	if attempts > 0 {
		m.attempts.WithLabelValues(provider).Observe(float64(attempts))
	}
	m.reconcileDurSec.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Prometheus) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}

func registerOrReuseCounterVec(reg prometheus.Registerer, c **prometheus.CounterVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func registerOrReuseHistogramVec(reg prometheus.Registerer, h **prometheus.HistogramVec) error {
	if err := reg.Register(*h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *h)
		}
		*h = existing
	}
	return nil
}
