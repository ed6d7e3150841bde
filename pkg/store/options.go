// ABOUTME: Functional options for configuring stores
// ABOUTME: Logger, metrics, tracing, schema registry and allocator injection

package store

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nainya/entgraph/internal/logger"
	"github.com/nainya/entgraph/internal/metrics"
	"github.com/nainya/entgraph/pkg/alloc"
	"github.com/nainya/entgraph/pkg/ent"
)

// Option configures a Memory store
type Option func(*Memory)

// WithLogger sets the logger; stores log nothing by default
func WithLogger(l *logger.Logger) Option {
	return func(m *Memory) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics records store operations on m
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Memory) {
		m.metrics = mt
	}
}

// WithTracerProvider sets the provider spans are started from; the global
// provider is used otherwise
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Memory) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithRegistry validates inserted entities of registered types against
// their schema
func WithRegistry(r *ent.Registry) Option {
	return func(m *Memory) {
		m.registry = r
	}
}

// WithAllocator replaces the id allocator, e.g. to resume a counter
func WithAllocator(a *alloc.Allocator) Option {
	return func(m *Memory) {
		if a != nil {
			m.alloc = a
		}
	}
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
