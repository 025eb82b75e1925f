// Package metrics expone las métricas del motor de reservas en Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
)

var _ inventory.Metrics = (*EngineMetrics)(nil)

// EngineMetrics contadores e histogramas por operación y resultado.
type EngineMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	retries    *prometheus.CounterVec
}

// NewEngineMetrics registra las métricas en reg. Con reg nil usa el registro por defecto.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &EngineMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "operations_total",
			Help:      "Operaciones del motor de reservas por resultado.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inventory",
			Name:      "operation_duration_seconds",
			Help:      "Duración de las operaciones del motor, incluidos reintentos y espera por bloqueos.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "retries_total",
			Help:      "Reintentos internos por conflicto de serialización.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.operations, m.duration, m.retries)
	return m
}

func (m *EngineMetrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *EngineMetrics) IncRetry(op string) {
	m.retries.WithLabelValues(op).Inc()
}
