// ABOUTME: OpenTelemetry spans for store operations
// ABOUTME: Span names and attribute keys shared by Memory operations

package store

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nainya/entgraph/pkg/ent"
)

const tracerName = "github.com/nainya/entgraph/pkg/store"

const (
	attrEntID     = attribute.Key("entgraph.ent.id")
	attrEntType   = attribute.Key("entgraph.ent.type")
	attrCount     = attribute.Key("entgraph.result.count")
	attrCascadeID = attribute.Key("entgraph.cascade.id")
	attrCondition = attribute.Key("entgraph.query.condition")
)

func (m *Memory) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// idAttr records ids as decimal strings; they span the full uint64 range
func idAttr(id ent.ID) attribute.KeyValue {
	return attrEntID.String(strconv.FormatUint(uint64(id), 10))
}

// endSpan records err on the span, if any, and ends it
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
