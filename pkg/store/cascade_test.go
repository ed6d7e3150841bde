// ABOUTME: Tests for removal cascades
// ABOUTME: Shallow and deep deletion, cycles and broken edges

package store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/entgraph/internal/logger"
	"github.com/nainya/entgraph/pkg/ent"
)

func TestShallowDeleteDetachesBackReferences(t *testing.T) {
	m, ctx := setupTestStore(t)
	mustInsert(t, m, ent.New(1, "T").WithEdge("link", ent.One(2), ent.ShallowDelete))
	mustInsert(t, m, ent.New(2, "T").WithEdge("back", ent.Many(1), ent.Nothing))

	removed, err := m.Remove(ctx, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	a, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, a)

	b, err := m.Get(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, b)
	back, ok := b.Edge("back")
	require.True(t, ok)
	assert.False(t, back.Value.Contains(1))
	assert.Equal(t, []ent.ID{2}, m.TypeIDs("T"))
}

func TestDeepDeleteRemovesTargets(t *testing.T) {
	m, ctx := setupTestStore(t)
	mustInsert(t, m, ent.New(1, "T").WithEdge("link", ent.One(2), ent.DeepDelete))
	mustInsert(t, m, ent.New(2, "T").WithEdge("back", ent.Many(1), ent.Nothing))

	removed, err := m.Remove(ctx, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.TypeIDs("T"))
	assert.ElementsMatch(t, []ent.ID{1, 2}, m.Freed())
}

func TestDeepDeleteTerminatesOnCycles(t *testing.T) {
	m, ctx := setupTestStore(t)
	mustInsert(t, m, ent.New(1, "node").WithEdge("next", ent.One(2), ent.DeepDelete))
	mustInsert(t, m, ent.New(2, "node").WithEdge("next", ent.One(3), ent.DeepDelete))
	mustInsert(t, m, ent.New(3, "node").WithEdge("next", ent.One(1), ent.DeepDelete))
	mustInsert(t, m, ent.New(4, "node").WithEdge("next", ent.One(4), ent.DeepDelete))

	removed, err := m.Remove(ctx, 1)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []ent.ID{4}, m.IDs())
	assert.Equal(t, []ent.ID{3, 2, 1}, m.Freed(), "ids are freed innermost first")

	removed, err = m.Remove(ctx, 4)
	require.NoError(t, err)
	assert.True(t, removed, "self loop")
	assert.Equal(t, 0, m.Len())
}

func TestDeepDeleteSkipsShallowDetachOfInFlightIDs(t *testing.T) {
	m, ctx := setupTestStore(t)
	mustInsert(t, m, ent.New(1, "T").WithEdge("child", ent.Many(2, 3), ent.DeepDelete))
	mustInsert(t, m, ent.New(2, "T").WithEdge("parent", ent.One(1), ent.ShallowDelete))
	mustInsert(t, m, ent.New(3, "T").WithEdge("parent", ent.One(1), ent.ShallowDelete))

	removed, err := m.Remove(ctx, 1)
	require.NoError(t, err, "the parent is in flight so its children never try to detach from it")
	assert.True(t, removed)
	assert.Equal(t, 0, m.Len())
}

func TestShallowDeleteReportsBrokenEdges(t *testing.T) {
	m, ctx := setupTestStore(t)
	author := mustInsert(t, m, ent.New(ent.EphemeralID, "user").
		WithEdge("posts", ent.Many(), ent.ShallowDelete))
	post := mustInsert(t, m, ent.New(ent.EphemeralID, "post").
		WithEdge("author", ent.One(author), ent.Nothing))
	_, err := m.UpdateEdge(ctx, author, "posts", ent.Many(post))
	require.NoError(t, err)

	removed, err := m.Remove(ctx, author)
	assert.True(t, removed, "the entity is removed even when the cascade fails")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBrokenEdge)
	assert.ErrorIs(t, err, ErrInvalidatesEdge)

	p, getErr := m.Get(ctx, post)
	require.NoError(t, getErr)
	require.NotNil(t, p)
	edge, _ := p.Edge("author")
	assert.Equal(t, []ent.ID{author}, edge.Value.IDs(), "a One edge keeps its only target")

	removed, err = m.Remove(ctx, author)
	assert.NoError(t, err)
	assert.False(t, removed)
}

func TestCascadeCollectsEveryFailure(t *testing.T) {
	m, ctx := setupTestStore(t)
	mustInsert(t, m, ent.New(1, "user").WithEdge("posts", ent.Many(2, 3), ent.ShallowDelete))
	mustInsert(t, m, ent.New(2, "post").WithEdge("author", ent.One(1), ent.Nothing))
	mustInsert(t, m, ent.New(3, "post").WithEdge("author", ent.One(1), ent.Nothing))

	_, err := m.Remove(ctx, 1)
	require.Error(t, err)

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 2)
}

func TestCascadeIgnoresDanglingTargets(t *testing.T) {
	m, ctx := setupTestStore(t)
	mustInsert(t, m, ent.New(1, "T").
		WithEdge("gone", ent.Many(50), ent.DeepDelete).
		WithEdge("also_gone", ent.MaybeOne(60), ent.ShallowDelete))

	removed, err := m.Remove(ctx, 1)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []ent.ID{1}, m.Freed())
}

func TestNothingPolicyLeavesTargets(t *testing.T) {
	m, ctx := setupTestStore(t)
	mustInsert(t, m, ent.New(1, "T").WithEdge("link", ent.Many(2), ent.Nothing))
	mustInsert(t, m, ent.New(2, "T").WithEdge("back", ent.Many(1), ent.Nothing))

	_, err := m.Remove(ctx, 1)
	require.NoError(t, err)

	b, err := m.Get(ctx, 2)
	require.NoError(t, err)
	back, _ := b.Edge("back")
	assert.True(t, back.Value.Contains(1), "dangling references are allowed")
}

// onCascadeStep runs fn the first time a cascade step is logged
type onCascadeStep struct {
	fired bool
	fn    func()
}

func (w *onCascadeStep) Write(p []byte) (int, error) {
	if !w.fired && bytes.Contains(p, []byte("Cascade step applied")) {
		w.fired = true
		w.fn()
	}
	return len(p), nil
}

func TestReinsertDuringCascadeKeepsID(t *testing.T) {
	w := &onCascadeStep{}
	m, ctx := setupTestStore(t, WithLogger(logger.NewLogger(logger.Config{Level: "debug", Output: w})))
	mustInsert(t, m, ent.New(1, "user").WithEdge("posts", ent.Many(2), ent.ShallowDelete))
	mustInsert(t, m, ent.New(2, "post"))

	w.fn = func() {
		_, err := m.Insert(context.Background(), ent.New(1, "admin"))
		require.NoError(t, err)
	}

	removed, err := m.Remove(ctx, 1)
	require.NoError(t, err)
	assert.True(t, removed)
	require.True(t, w.fired)

	assert.True(t, m.Contains(1))
	assert.Empty(t, m.Freed(), "a live id is never freed")
	assert.Equal(t, []ent.ID{1}, m.TypeIDs("admin"))
	assert.Empty(t, m.TypeIDs("user"))
	assert.Equal(t, ent.ID(3), mustInsert(t, m, ent.New(ent.EphemeralID, "post")))
}
