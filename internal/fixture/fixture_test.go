package fixture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/entgraph/pkg/ent"
	"github.com/nainya/entgraph/pkg/query"
	"github.com/nainya/entgraph/pkg/store"
)

func setupTestFixture(t *testing.T) (*Fixture, *ent.Registry, *store.Memory) {
	t.Helper()
	f, err := Load("testdata/social.yaml")
	require.NoError(t, err)

	reg, err := f.Registry()
	require.NoError(t, err)

	m := store.NewMemory(store.WithRegistry(reg))
	ids, err := f.Apply(context.Background(), m, reg)
	require.NoError(t, err)
	require.Len(t, ids, 6)
	return f, reg, m
}

func findIDs(t *testing.T, f *Fixture, m *store.Memory, name string) []ent.ID {
	t.Helper()
	q, err := f.Query(name)
	require.NoError(t, err)
	found, err := m.FindAll(context.Background(), q)
	require.NoError(t, err)
	out := make([]ent.ID, len(found))
	for i, e := range found {
		out[i] = e.ID()
	}
	return out
}

func TestLoadAppliesSchemas(t *testing.T) {
	_, reg, m := setupTestFixture(t)
	ctx := context.Background()

	assert.Equal(t, []string{"post", "user"}, reg.Types())
	assert.Equal(t, []ent.ID{1, 2, 3}, m.TypeIDs("user"))
	assert.Equal(t, []ent.ID{6}, m.TypeIDs("tag"), "ephemeral id follows the highest explicit id")

	alice, err := m.Get(ctx, 1)
	require.NoError(t, err)
	age, _ := alice.FieldValue("age")
	assert.Equal(t, ent.Uint(30), age, "ints are coerced to the declared uint")
	score, _ := alice.FieldValue("score")
	assert.Equal(t, ent.Float(9), score)
	nick, _ := alice.FieldValue("nickname")
	assert.Equal(t, ent.Some(ent.Text("ali")), nick)
	assert.Equal(t, uint64(100), alice.Created())

	posts, _ := alice.Edge("posts")
	assert.Equal(t, ent.DeepDelete, posts.Policy, "policy comes from the schema")

	_, err = m.UpdateField(ctx, 1, "name", ent.Text("eve"))
	assert.ErrorIs(t, err, ent.ErrImmutableField)
}

func TestNamedQueries(t *testing.T) {
	f, _, m := setupTestFixture(t)

	tests := map[string][]ent.ID{
		"adults":          {1, 3},
		"posts_by_ops":    {4},
		"friendly":        {3},
		"recent_or_bob":   {2, 4, 5, 6},
		"bare_field":      {},
		"first_two_users": {1, 2},
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, findIDs(t, f, m, name))
		})
	}

	_, err := f.Query("missing")
	assert.Error(t, err)
}

func TestFixtureCascade(t *testing.T) {
	_, _, m := setupTestFixture(t)
	ctx := context.Background()

	removed, err := m.Remove(ctx, 1)
	assert.True(t, removed)
	// Bob's friends edge drops alice; post 4 goes with alice
	require.NoError(t, err)

	assert.Equal(t, []ent.ID{2, 3, 5, 6}, m.IDs())
	bob, err := m.Get(ctx, 2)
	require.NoError(t, err)
	friends, _ := bob.Edge("friends")
	assert.Empty(t, friends.Value.IDs())
	assert.ElementsMatch(t, []ent.ID{1, 4}, m.Freed())
	require.NoError(t, m.Verify())
}

func TestConditionDocCompile(t *testing.T) {
	id := uint64(7)
	tests := []struct {
		name string
		doc  ConditionDoc
		want query.Condition
	}{
		{"always", ConditionDoc{Always: true}, query.Always{}},
		{"id", ConditionDoc{ID: &id}, query.HasID{ID: 7}},
		{"not type", ConditionDoc{Not: &ConditionDoc{Type: "user"}}, query.Not{Cond: query.HasType{Type: "user"}}},
		{"xor", ConditionDoc{Xor: []ConditionDoc{{Never: true}, {Type: "x"}}}, query.Xor{Left: query.Never{}, Right: query.HasType{Type: "x"}}},
		{"empty and", ConditionDoc{And: []ConditionDoc{}}, query.Always{}},
		{"field eq", ConditionDoc{Field: &FieldDoc{Name: "n", Op: "eq", Value: 3}}, query.Field{Name: "n", Pred: query.EqualTo(ent.Int(3))}},
		{"edge all", ConditionDoc{Edge: &EdgeCondDoc{Name: "e", Quant: "all", Where: ConditionDoc{Always: true}}}, query.Edge{Name: "e", Cond: query.EdgeAll(query.Always{})}},
		{"created", ConditionDoc{Created: &TimeDoc{Op: "on_or_between", At: 1, Until: 2}}, query.Created{Time: query.OnOrBetween(1, 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.doc.Compile()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConditionDocErrors(t *testing.T) {
	tests := map[string]ConditionDoc{
		"no key":        {},
		"two keys":      {Always: true, Type: "user"},
		"bad op":        {Field: &FieldDoc{Name: "n", Op: "like", Value: "x"}},
		"bad range":     {Field: &FieldDoc{Name: "n", Op: "range", Values: []any{1}}},
		"nameless edge": {Edge: &EdgeCondDoc{Where: ConditionDoc{Always: true}}},
		"bad quant":     {Edge: &EdgeCondDoc{Name: "e", Quant: "most", Where: ConditionDoc{Always: true}}},
		"bad time op":   {LastUpdated: &TimeDoc{Op: "soon"}},
		"xor arity":     {Xor: []ConditionDoc{{Always: true}}},
		"nested":        {And: []ConditionDoc{{Always: true}, {}}},
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := doc.Compile()
			assert.Error(t, err)
		})
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	tests := map[string]string{
		"unknown key":   "entities:\n  - type: user\n    colour: red\n",
		"missing type":  "entities:\n  - id: 1\n",
		"bad edge kind": "entities:\n  - type: user\n    edges:\n      e: {kind: lots, ids: [1]}\n",
		"bad attribute": "schemas:\n  - type: user\n    fields:\n      - {name: a, type: int, attributes: [shiny]}\n",
		"negative page": "queries:\n  - name: q\n    limit: -1\n    where: {always: true}\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestEdgeDocShapes(t *testing.T) {
	_, err := EdgeDoc{Kind: "one"}.Value()
	assert.ErrorIs(t, err, ent.ErrTooManyIDs)
	_, err = EdgeDoc{Kind: "maybe_one", IDs: []uint64{1, 2}}.Value()
	assert.ErrorIs(t, err, ent.ErrTooManyIDs)

	v, err := EdgeDoc{Kind: "many", IDs: []uint64{3, 1, 3}}.Value()
	require.NoError(t, err)
	assert.Equal(t, []ent.ID{3, 1}, v.IDs(), "duplicates dropped, order kept")
}

func TestParseValueType(t *testing.T) {
	tests := map[string]ent.ValueType{
		"int":                     ent.TypeOf(ent.KindInt),
		"list":                    ent.TypeOf(ent.KindList),
		"list<text>":              ent.ListOf(ent.TypeOf(ent.KindText)),
		"optional<map<float>>":    ent.OptionalOf(ent.MapOf(ent.TypeOf(ent.KindFloat))),
		" list<optional<char>> ": ent.ListOf(ent.OptionalOf(ent.TypeOf(ent.KindChar))),
	}
	for in, want := range tests {
		got, err := ParseValueType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"integer", "list<int", "int<text>"} {
		_, err := ParseValueType(bad)
		assert.Error(t, err, bad)
	}
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, ent.Uint(3), Coerce(ent.Int(3), ent.TypeOf(ent.KindUint)))
	assert.Equal(t, ent.Int(-3), Coerce(ent.Int(-3), ent.TypeOf(ent.KindUint)), "negative stays int")
	assert.Equal(t, ent.Char('x'), Coerce(ent.Text("x"), ent.TypeOf(ent.KindChar)))
	assert.Equal(t, ent.Unit(), Coerce(ent.None(), ent.TypeOf(ent.KindUnit)))
	assert.Equal(t, ent.None(), Coerce(ent.None(), ent.OptionalOf(ent.TypeOf(ent.KindInt))))
	assert.Equal(t,
		ent.List(ent.Float(1), ent.Float(2.5)),
		Coerce(ent.List(ent.Int(1), ent.Float(2.5)), ent.ListOf(ent.TypeOf(ent.KindFloat))))
	assert.Equal(t,
		ent.Map(map[string]ent.Value{"a": ent.Uint(1)}),
		Coerce(ent.Map(map[string]ent.Value{"a": ent.Int(1)}), ent.MapOf(ent.TypeOf(ent.KindUint))))
}

func TestBuildEntities(t *testing.T) {
	f, err := Load("testdata/social.yaml")
	require.NoError(t, err)
	reg, err := f.Registry()
	require.NoError(t, err)

	ents, err := f.BuildEntities(reg)
	require.NoError(t, err)
	require.Len(t, ents, len(f.Entities))
	assert.Equal(t, ent.ID(1), ents[0].ID())
	assert.Equal(t, "user", ents[0].Type())
	assert.Equal(t, ent.EphemeralID, ents[len(ents)-1].ID(), "tag has no id until inserted")

	// without a registry fields keep their decoded kinds
	raw, err := f.BuildEntities(nil)
	require.NoError(t, err)
	age, ok := raw[0].FieldValue("age")
	require.True(t, ok)
	assert.Equal(t, ent.Int(30), age)
}
