package query

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/nodeql/internal/apperr"
)

// Metrics holds the executor's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	queries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	results  *prometheus.HistogramVec
	batches  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. It returns
// nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeql",
			Subsystem: "query",
			Name:      "executed_total",
			Help:      "Queries executed, by node type and outcome",
		}, []string{"type", "status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nodeql",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Time spent executing a query",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"type"}),

		results: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nodeql",
			Subsystem: "query",
			Name:      "matched_nodes",
			Help:      "Nodes left after filtering",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"type"}),

		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nodeql",
			Subsystem: "query",
			Name:      "batches_total",
			Help:      "Query batches executed",
		}),
	}
	reg.MustRegister(m.queries, m.duration, m.results, m.batches)
	return m
}

func (m *Metrics) observe(typ string, err error, elapsed time.Duration, matched int) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(typ, status(err)).Inc()
	m.duration.WithLabelValues(typ).Observe(elapsed.Seconds())
	if err == nil {
		m.results.WithLabelValues(typ).Observe(float64(matched))
	}
}

func (m *Metrics) batch() {
	if m == nil {
		return
	}
	m.batches.Inc()
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrCancelled):
		return "cancelled"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case apperr.IsCompileError(err):
		return "invalid"
	}
	return "error"
}
