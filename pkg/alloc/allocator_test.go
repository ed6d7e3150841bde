// ABOUTME: Tests for id allocation and reuse
// ABOUTME: Verifies LIFO reuse, external id marking and exhaustion

package alloc

import (
	"testing"

	"github.com/nainya/entgraph/pkg/ent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, a *Allocator, n int) []ent.ID {
	t.Helper()
	out := make([]ent.ID, 0, n)
	for i := 0; i < n; i++ {
		id, ok := a.Next()
		require.True(t, ok, "allocation %d failed", i)
		out = append(out, id)
	}
	return out
}

func TestNextCountsFromOne(t *testing.T) {
	a := New()
	assert.Equal(t, []ent.ID{1, 2, 3}, drain(t, a, 3))
}

func TestFreedIdsReusedLIFOBeforeCounter(t *testing.T) {
	a := New()
	a.Extend(9, 8, 7)

	assert.Equal(t, []ent.ID{7, 8, 9, 1, 2, 3}, drain(t, a, 6))
}

func TestNextExhaustsAtMax(t *testing.T) {
	a := New()
	a.SetNextID(ent.MaxID)

	id, ok := a.Next()
	require.True(t, ok)
	assert.Equal(t, ent.MaxID, id)
	assert.False(t, a.HasNext())

	_, ok = a.Next()
	assert.False(t, ok)

	// A freed id still comes back after exhaustion
	a.Extend(42)
	assert.True(t, a.HasNext())
	id, ok = a.Next()
	require.True(t, ok)
	assert.Equal(t, ent.ID(42), id)
}

func TestMarkExternalID(t *testing.T) {
	tests := []struct {
		name     string
		start    ent.ID
		external ent.ID
		want     ent.ID
	}{
		{"beyond counter", 3, 999, 1000},
		{"equal to counter", 999, 999, 1000},
		{"below counter", 1000, 1, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			a.SetNextID(tt.start)
			a.MarkExternalID(tt.external)

			next, ok := a.NextID()
			require.True(t, ok)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestMarkExternalIDAtMaxExhausts(t *testing.T) {
	a := New()
	a.MarkExternalID(ent.MaxID)
	_, ok := a.NextID()
	assert.False(t, ok)
	assert.False(t, a.HasNext())
}

func TestMarkExternalIDKeepsExhausted(t *testing.T) {
	a := New()
	a.SetNextID(ent.MaxID)
	drain(t, a, 1)

	a.MarkExternalID(5)
	_, ok := a.NextID()
	assert.False(t, ok)
}

func TestMarkExternalIDDropsFromPool(t *testing.T) {
	a := New()
	a.Extend(4, 5, 6)
	a.MarkExternalID(5)

	assert.Equal(t, []ent.ID{4, 6}, a.Freed())
}
