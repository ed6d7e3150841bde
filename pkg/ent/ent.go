// ABOUTME: Entity record with typed fields and edges
// ABOUTME: Mutations stamp last-updated time; clones never share memory

package ent

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// FieldAttribute tags a field with extra behavior
type FieldAttribute uint8

const (
	// Indexed marks a field as a lookup key for backends that index fields
	Indexed FieldAttribute = iota + 1

	// Immutable marks a field that cannot change after creation
	Immutable
)

func (a FieldAttribute) String() string {
	switch a {
	case Indexed:
		return "indexed"
	case Immutable:
		return "immutable"
	default:
		return fmt.Sprintf("attribute(%d)", uint8(a))
	}
}

// ParseFieldAttribute maps an attribute name back to its FieldAttribute
func ParseFieldAttribute(s string) (FieldAttribute, error) {
	switch s {
	case "indexed":
		return Indexed, nil
	case "immutable":
		return Immutable, nil
	}
	return 0, fmt.Errorf("unknown field attribute %q", s)
}

// Field is a named value on an entity
type Field struct {
	Name       string
	Value      Value
	Attributes []FieldAttribute
}

// Has reports whether the field carries the attribute
func (f Field) Has(attr FieldAttribute) bool {
	for _, a := range f.Attributes {
		if a == attr {
			return true
		}
	}
	return false
}

// Edge is a named reference to other entities
type Edge struct {
	Name   string
	Value  EdgeValue
	Policy EdgeDeletionPolicy
}

// Now returns the current time in milliseconds since the epoch.
// Tests may replace it.
var Now = func() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Entity is a stored record: an id, a type name, fields and edges
type Entity struct {
	id          ID
	typ         string
	fields      map[string]Field
	edges       map[string]Edge
	created     uint64
	lastUpdated uint64
}

// New creates an entity of the given type with no fields or edges.
// Use EphemeralID to let the store allocate the id.
func New(id ID, typ string) *Entity {
	now := Now()
	return &Entity{
		id:          id,
		typ:         typ,
		fields:      make(map[string]Field),
		edges:       make(map[string]Edge),
		created:     now,
		lastUpdated: now,
	}
}

// WithField sets a field and returns the entity for chaining
func (e *Entity) WithField(name string, v Value, attrs ...FieldAttribute) *Entity {
	e.fields[name] = Field{Name: name, Value: v, Attributes: attrs}
	return e
}

// WithEdge sets an edge and returns the entity for chaining
func (e *Entity) WithEdge(name string, v EdgeValue, policy EdgeDeletionPolicy) *Entity {
	e.edges[name] = Edge{Name: name, Value: v, Policy: policy}
	return e
}

// WithTimestamps overrides the created and last-updated times
func (e *Entity) WithTimestamps(created, lastUpdated uint64) *Entity {
	e.created = created
	e.lastUpdated = lastUpdated
	return e
}

func (e *Entity) ID() ID { return e.id }
func (e *Entity) SetID(id ID) { e.id = id }
func (e *Entity) Type() string { return e.typ }
func (e *Entity) Created() uint64 { return e.created }
func (e *Entity) LastUpdated() uint64 { return e.lastUpdated }

// MarkUpdated stamps the last-updated time with the current time
func (e *Entity) MarkUpdated() {
	e.lastUpdated = Now()
}

// Field returns the named field
func (e *Entity) Field(name string) (Field, bool) {
	f, ok := e.fields[name]
	return f, ok
}

// FieldValue returns the value of the named field
func (e *Entity) FieldValue(name string) (Value, bool) {
	f, ok := e.fields[name]
	return f.Value, ok
}

// Fields returns all fields sorted by name
func (e *Entity) Fields() []Field {
	out := make([]Field, 0, len(e.fields))
	for _, f := range e.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Edge returns the named edge
func (e *Entity) Edge(name string) (Edge, bool) {
	ed, ok := e.edges[name]
	return ed, ok
}

// Edges returns all edges sorted by name
func (e *Entity) Edges() []Edge {
	out := make([]Edge, 0, len(e.edges))
	for _, ed := range e.edges {
		out = append(out, ed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// UpdateField replaces the value of an existing field and returns the old
// value. The new value must be compatible with the old one.
func (e *Entity) UpdateField(name string, v Value) (Value, error) {
	f, ok := e.fields[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q on %s %d", ErrMissingField, name, e.typ, e.id)
	}
	if f.Has(Immutable) {
		return Value{}, fmt.Errorf("%w: %q on %s %d", ErrImmutableField, name, e.typ, e.id)
	}
	if !f.Value.Type().Compatible(v.Type()) {
		return Value{}, fmt.Errorf("%w: field %q is %s, got %s", ErrWrongType, name, f.Value.Type(), v.Type())
	}

	old := f.Value
	f.Value = v
	e.fields[name] = f
	e.MarkUpdated()
	return old, nil
}

// UpdateEdge replaces the value of an existing edge and returns the old
// value. The shape of the edge cannot change.
func (e *Entity) UpdateEdge(name string, v EdgeValue) (EdgeValue, error) {
	ed, ok := e.edges[name]
	if !ok {
		return EdgeValue{}, fmt.Errorf("%w: %q on %s %d", ErrMissingEdge, name, e.typ, e.id)
	}
	if ed.Value.Kind() != v.Kind() {
		return EdgeValue{}, fmt.Errorf("%w: edge %q is %s, got %s", ErrWrongType, name, ed.Value.Kind(), v.Kind())
	}

	old := ed.Value
	ed.Value = v.Clone()
	e.edges[name] = ed
	e.MarkUpdated()
	return old, nil
}

// AddEdgeIDs adds targets to an existing edge. A One or MaybeOne edge that
// would hold more than one id fails with ErrTooManyIDs.
func (e *Entity) AddEdgeIDs(name string, ids ...ID) error {
	ed, ok := e.edges[name]
	if !ok {
		return fmt.Errorf("%w: %q on %s %d", ErrMissingEdge, name, e.typ, e.id)
	}
	if err := ed.Value.AddIDs(ids...); err != nil {
		return fmt.Errorf("edge %q: %w", name, err)
	}
	e.edges[name] = ed
	e.MarkUpdated()
	return nil
}

// RemoveEdgeIDs removes targets from an existing edge. Emptying a One edge
// fails with ErrInvalidatesEdge.
func (e *Entity) RemoveEdgeIDs(name string, ids ...ID) error {
	ed, ok := e.edges[name]
	if !ok {
		return fmt.Errorf("%w: %q on %s %d", ErrMissingEdge, name, e.typ, e.id)
	}
	if err := ed.Value.RemoveIDs(ids...); err != nil {
		return fmt.Errorf("edge %q: %w", name, err)
	}
	e.edges[name] = ed
	e.MarkUpdated()
	return nil
}

// DetachID removes id from every edge of the entity. Edges that would be
// invalidated are left as they are and reported in the returned error.
// The result reports whether any edge changed.
func (e *Entity) DetachID(id ID) (bool, error) {
	changed := false
	var errs []error
	for _, name := range e.edgeNames() {
		ed := e.edges[name]
		if !ed.Value.Contains(id) {
			continue
		}
		if err := ed.Value.RemoveIDs(id); err != nil {
			errs = append(errs, fmt.Errorf("edge %q: %w", name, err))
			continue
		}
		e.edges[name] = ed
		changed = true
	}
	if changed {
		e.MarkUpdated()
	}
	return changed, errors.Join(errs...)
}

func (e *Entity) edgeNames() []string {
	names := make([]string, 0, len(e.edges))
	for name := range e.edges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the entity
func (e *Entity) Clone() *Entity {
	cp := &Entity{
		id:          e.id,
		typ:         e.typ,
		fields:      make(map[string]Field, len(e.fields)),
		edges:       make(map[string]Edge, len(e.edges)),
		created:     e.created,
		lastUpdated: e.lastUpdated,
	}
	for name, f := range e.fields {
		attrs := make([]FieldAttribute, len(f.Attributes))
		copy(attrs, f.Attributes)
		cp.fields[name] = Field{Name: f.Name, Value: f.Value.Clone(), Attributes: attrs}
	}
	for name, ed := range e.edges {
		cp.edges[name] = Edge{Name: ed.Name, Value: ed.Value.Clone(), Policy: ed.Policy}
	}
	return cp
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s#%d", e.typ, e.id)
}
