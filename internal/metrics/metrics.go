// Package metrics exposes Prometheus collectors for the record service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. A nil *Metrics is a no-op, so
// instrumentation stays optional in tests.
type Metrics struct {
	Operations    *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	PointsWritten prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxrecord_operations_total",
			Help: "Service operations by name and outcome.",
		}, []string{"operation", "status"}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fluxrecord_query_duration_seconds",
			Help:    "Flux query round-trip duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		PointsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "fluxrecord_points_written_total",
			Help: "Points submitted to the write API.",
		}),
	}
}

// RecordOperation counts one operation outcome.
func (m *Metrics) RecordOperation(op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Operations.WithLabelValues(op, status).Inc()
}

// ObserveQuery records one query round trip.
func (m *Metrics) ObserveQuery(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// AddPointsWritten counts points handed to the writer.
func (m *Metrics) AddPointsWritten(n int) {
	if m == nil {
		return
	}
	m.PointsWritten.Add(float64(n))
}
