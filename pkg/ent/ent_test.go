// ABOUTME: Tests for entity mutation and schema conformance
// ABOUTME: Checks last-updated stamping, shape invariants and registry rules

package ent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClock(t *testing.T, start uint64) *uint64 {
	t.Helper()
	now := start
	prev := Now
	Now = func() uint64 { return now }
	t.Cleanup(func() { Now = prev })
	return &now
}

func TestEntityUpdateFieldStampsTime(t *testing.T) {
	clock := withClock(t, 1000)
	e := New(1, "user").WithField("name", Text("alice"))
	assert.Equal(t, uint64(1000), e.Created())

	*clock = 2000
	old, err := e.UpdateField("name", Text("bob"))
	require.NoError(t, err)
	assert.True(t, old.Equal(Text("alice")))
	assert.Equal(t, uint64(2000), e.LastUpdated())
	assert.Equal(t, uint64(1000), e.Created())

	_, err = e.UpdateField("name", Int(3))
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = e.UpdateField("missing", Int(3))
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestEntityImmutableField(t *testing.T) {
	e := New(1, "user").WithField("email", Text("a@b"), Immutable)
	_, err := e.UpdateField("email", Text("c@d"))
	assert.ErrorIs(t, err, ErrImmutableField)
}

func TestEntityUpdateEdgeKeepsShape(t *testing.T) {
	e := New(1, "user").WithEdge("friends", Many(2), Nothing)

	_, err := e.UpdateEdge("friends", One(3))
	assert.ErrorIs(t, err, ErrWrongType)

	old, err := e.UpdateEdge("friends", Many(3, 4))
	require.NoError(t, err)
	assert.Equal(t, []ID{2}, old.IDs())

	ed, ok := e.Edge("friends")
	require.True(t, ok)
	assert.Equal(t, []ID{3, 4}, ed.Value.IDs())

	_, err = e.UpdateEdge("nope", Many())
	assert.ErrorIs(t, err, ErrMissingEdge)
}

func TestEntityAddAndRemoveEdgeIDs(t *testing.T) {
	clock := withClock(t, 10)
	e := New(1, "post").
		WithEdge("author", One(2), Nothing).
		WithEdge("editor", MaybeOne(), Nothing).
		WithEdge("tags", Many(5), Nothing)

	*clock = 20
	require.NoError(t, e.AddEdgeIDs("tags", 7, 5, 6))
	tags, _ := e.Edge("tags")
	assert.Equal(t, []ID{5, 6, 7}, tags.Value.IDs())
	assert.Equal(t, uint64(20), e.LastUpdated())

	err := e.AddEdgeIDs("author", 3)
	assert.ErrorIs(t, err, ErrTooManyIDs)
	author, _ := e.Edge("author")
	assert.Equal(t, []ID{2}, author.Value.IDs(), "rejected add leaves the edge alone")

	require.NoError(t, e.AddEdgeIDs("editor", 9))
	assert.ErrorIs(t, e.AddEdgeIDs("editor", 10), ErrTooManyIDs)

	*clock = 30
	require.NoError(t, e.RemoveEdgeIDs("tags", 5, 99))
	tags, _ = e.Edge("tags")
	assert.Equal(t, []ID{6, 7}, tags.Value.IDs())
	assert.Equal(t, uint64(30), e.LastUpdated())

	assert.ErrorIs(t, e.RemoveEdgeIDs("author", 2), ErrInvalidatesEdge)
	require.NoError(t, e.RemoveEdgeIDs("editor", 9))
	editor, _ := e.Edge("editor")
	assert.Empty(t, editor.Value.IDs())

	assert.ErrorIs(t, e.AddEdgeIDs("missing", 1), ErrMissingEdge)
	assert.ErrorIs(t, e.RemoveEdgeIDs("missing", 1), ErrMissingEdge)
}

func TestEntityDetachID(t *testing.T) {
	e := New(1, "post").
		WithEdge("author", One(9), Nothing).
		WithEdge("likes", Many(9, 10), Nothing).
		WithEdge("pinned", MaybeOne(9), Nothing)

	changed, err := e.DetachID(9)
	assert.True(t, changed)
	require.ErrorIs(t, err, ErrInvalidatesEdge)

	author, _ := e.Edge("author")
	likes, _ := e.Edge("likes")
	pinned, _ := e.Edge("pinned")
	assert.Equal(t, []ID{9}, author.Value.IDs())
	assert.Equal(t, []ID{10}, likes.Value.IDs())
	assert.Equal(t, 0, pinned.Value.Len())
}

func TestEntityCloneIsIndependent(t *testing.T) {
	e := New(1, "user").
		WithField("tags", List(Text("a"))).
		WithEdge("friends", Many(2), ShallowDelete)

	cp := e.Clone()
	_, err := cp.UpdateEdge("friends", Many(5))
	require.NoError(t, err)

	ed, _ := e.Edge("friends")
	assert.Equal(t, []ID{2}, ed.Value.IDs())
	assert.Equal(t, ShallowDelete, ed.Policy)
}

func userSchema() Schema {
	return Schema{
		Type: "user",
		Fields: []FieldDefinition{
			{Name: "name", Type: TypeOf(KindText)},
			{Name: "age", Type: TypeOf(KindInt), Attributes: []FieldAttribute{Indexed}},
		},
		Edges: []EdgeDefinition{
			{Name: "friends", Kind: EdgeMany, Policy: ShallowDelete},
			{Name: "manager", Kind: EdgeMaybeOne, Policy: Nothing},
		},
	}
}

func TestRegistryRegisterValidates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(userSchema()))
	assert.Equal(t, []string{"user"}, reg.Types())

	bad := userSchema()
	bad.Type = "not a name"
	assert.ErrorIs(t, reg.Register(bad), ErrInvalidSchema)

	dup := userSchema()
	dup.Edges = append(dup.Edges, EdgeDefinition{Name: "name", Kind: EdgeMany})
	assert.ErrorIs(t, reg.Register(dup), ErrInvalidSchema)

	badPolicy := userSchema()
	badPolicy.Edges[0].Policy = EdgeDeletionPolicy(7)
	assert.ErrorIs(t, reg.Register(badPolicy), ErrInvalidSchema)
}

func TestRegistryNewAndConform(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(userSchema()))

	e, err := reg.New("user", EphemeralID)
	require.NoError(t, err)
	name, ok := e.FieldValue("name")
	require.True(t, ok)
	assert.True(t, name.Equal(Text("")))

	applied, err := reg.Conform(e)
	require.NoError(t, err)
	assert.True(t, applied)

	// Policies come from the schema, not from the entity
	hand := New(1, "user").
		WithField("name", Text("a")).
		WithField("age", Int(3)).
		WithEdge("friends", Many(), Nothing).
		WithEdge("manager", MaybeOne(), DeepDelete)
	_, err = reg.Conform(hand)
	require.NoError(t, err)
	friends, _ := hand.Edge("friends")
	assert.Equal(t, ShallowDelete, friends.Policy)
	age, _ := hand.Field("age")
	assert.True(t, age.Has(Indexed))

	_, err = reg.New("ghost", 1)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestSchemaCheckRejectsMismatches(t *testing.T) {
	s := userSchema()

	missing := New(1, "user").WithField("name", Text("a"))
	assert.ErrorIs(t, s.Check(missing), ErrMissingField)

	wrong := New(1, "user").
		WithField("name", Int(1)).
		WithField("age", Int(3)).
		WithEdge("friends", Many(), Nothing).
		WithEdge("manager", MaybeOne(), Nothing)
	assert.ErrorIs(t, s.Check(wrong), ErrWrongType)

	shape := New(1, "user").
		WithField("name", Text("a")).
		WithField("age", Int(3)).
		WithEdge("friends", One(2), Nothing).
		WithEdge("manager", MaybeOne(), Nothing)
	assert.ErrorIs(t, s.Check(shape), ErrWrongType)

	extra := New(1, "user").
		WithField("name", Text("a")).
		WithField("age", Int(3)).
		WithField("bio", Text("")).
		WithEdge("friends", Many(), Nothing).
		WithEdge("manager", MaybeOne(), Nothing)
	assert.ErrorIs(t, s.Check(extra), ErrWrongType)

	unregistered := New(1, "other")
	applied, err := NewRegistry().Conform(unregistered)
	assert.NoError(t, err)
	assert.False(t, applied)
}
