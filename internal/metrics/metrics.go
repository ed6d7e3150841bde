// Package metrics provides Prometheus metrics for entgraph
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for an entity store
type Metrics struct {
	// Store operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Store contents
	EntitiesTotal prometheus.Gauge
	FreedIDsTotal prometheus.Gauge

	// Cascade metrics
	CascadeActionsTotal *prometheus.CounterVec
	BrokenEdgesTotal    prometheus.Counter

	// Query metrics
	ConditionEvaluationsTotal *prometheus.CounterVec
	QueryResultsTotal         prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// uses the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{}

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entgraph_store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)

	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entgraph_store_operation_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: []float64{.00001, .0001, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"operation"},
	)

	m.EntitiesTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "entgraph_entities_total",
			Help: "Number of entities currently stored",
		},
	)

	m.FreedIDsTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "entgraph_freed_ids_total",
			Help: "Number of freed ids waiting for reuse",
		},
	)

	m.CascadeActionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entgraph_cascade_actions_total",
			Help: "Total number of edge targets visited by removal cascades",
		},
		[]string{"policy"},
	)

	m.BrokenEdgesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "entgraph_broken_edges_total",
			Help: "Total number of edges a cascade could not detach",
		},
	)

	m.ConditionEvaluationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entgraph_condition_evaluations_total",
			Help: "Total number of condition nodes evaluated",
		},
		[]string{"kind"},
	)

	m.QueryResultsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "entgraph_query_results_total",
			Help: "Total number of entities returned by queries",
		},
	)

	return m
}

// RecordStoreOperation records a store operation
func (m *Metrics) RecordStoreOperation(operation string, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCondition counts one evaluated condition node
func (m *Metrics) RecordCondition(kind string) {
	m.ConditionEvaluationsTotal.WithLabelValues(kind).Inc()
}

// RecordCascade counts one cascade action
func (m *Metrics) RecordCascade(policy string, broken bool) {
	m.CascadeActionsTotal.WithLabelValues(policy).Inc()
	if broken {
		m.BrokenEdgesTotal.Inc()
	}
}

// UpdateStoreStats updates store content gauges
func (m *Metrics) UpdateStoreStats(entities int, freed int) {
	m.EntitiesTotal.Set(float64(entities))
	m.FreedIDsTotal.Set(float64(freed))
}
