// ABOUTME: Tests for store logging, metrics and tracing
// ABOUTME: Uses a private Prometheus registry and an in-memory span recorder

package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nainya/entgraph/internal/logger"
	"github.com/nainya/entgraph/internal/metrics"
	"github.com/nainya/entgraph/pkg/ent"
	"github.com/nainya/entgraph/pkg/query"
)

func TestStoreMetrics(t *testing.T) {
	mt := metrics.NewMetrics(prometheus.NewRegistry())
	m, ctx := setupTestStore(t, WithMetrics(mt))

	mustInsert(t, m, ent.New(1, "user").WithEdge("posts", ent.Many(2), ent.ShallowDelete))
	mustInsert(t, m, ent.New(2, "post").WithEdge("author", ent.One(1), ent.Nothing))
	mustInsert(t, m, ent.New(3, "post").WithField("n", ent.Int(1)))

	_, err := m.FindAll(ctx, query.NewBuilder().WhereType("post").Build())
	require.NoError(t, err)

	_, err = m.Remove(ctx, 1)
	require.Error(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(mt.OperationsTotal.WithLabelValues("insert", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.OperationsTotal.WithLabelValues("find_all", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.OperationsTotal.WithLabelValues("remove", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(mt.QueryResultsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(mt.EntitiesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.FreedIDsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.CascadeActionsTotal.WithLabelValues("shallow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.BrokenEdgesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.ConditionEvaluationsTotal.WithLabelValues("and")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.ConditionEvaluationsTotal.WithLabelValues("has_type")))
}

func TestStoreSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	m, ctx := setupTestStore(t, WithTracerProvider(tp))
	mustInsert(t, m, ent.New(1, "T").WithEdge("link", ent.One(2), ent.DeepDelete))
	mustInsert(t, m, ent.New(2, "T"))

	_, err := m.FindAll(ctx, query.New(query.HasType{Type: "T"}))
	require.NoError(t, err)
	_, err = m.Remove(ctx, 1)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 4)

	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"Store.Insert", "Store.Insert", "Store.FindAll", "Store.Remove"}, names)

	attrs := func(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
		out := make(map[attribute.Key]attribute.Value)
		for _, kv := range s.Attributes() {
			out[kv.Key] = kv.Value
		}
		return out
	}

	insert := attrs(spans[0])
	assert.Equal(t, "1", insert[attrEntID].AsString())
	assert.Equal(t, "T", insert[attrEntType].AsString())

	find := attrs(spans[2])
	assert.Equal(t, int64(2), find[attrCount].AsInt64())

	remove := attrs(spans[3])
	assert.Equal(t, int64(2), remove[attrCount].AsInt64(), "cascade removed both entities")
	assert.NotEmpty(t, remove[attrCascadeID].AsString())
}

func TestStoreLogsCascadeSteps(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: "debug", Output: &buf})

	m, ctx := setupTestStore(t, WithLogger(log))
	mustInsert(t, m, ent.New(1, "T").WithEdge("link", ent.One(2), ent.DeepDelete))
	mustInsert(t, m, ent.New(2, "T"))

	_, err := m.Remove(ctx, 1)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"component":"cascade"`)
	assert.Contains(t, out, `"policy":"deep"`)
	assert.Contains(t, out, `"operation":"remove"`)
	assert.Contains(t, out, `"service":"entgraph"`)
}

func TestIDAttrCoversFullRange(t *testing.T) {
	assert.Equal(t, "18446744073709551615", idAttr(ent.MaxID).Value.AsString())
	assert.Equal(t, "0", idAttr(ent.EphemeralID).Value.AsString())
}
