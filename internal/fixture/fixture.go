// Package fixture decodes YAML documents describing schemas, entities and
// named queries, and loads them into an entity store
package fixture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nainya/entgraph/pkg/ent"
	"github.com/nainya/entgraph/pkg/query"
	"github.com/nainya/entgraph/pkg/store"
)

var validate = validator.New()

// Fixture is a decoded fixture document
type Fixture struct {
	Schemas  []SchemaDoc `yaml:"schemas" validate:"dive"`
	Entities []EntityDoc `yaml:"entities" validate:"dive"`
	Queries  []QueryDoc  `yaml:"queries" validate:"dive"`
}

// SchemaDoc declares an entity type
type SchemaDoc struct {
	Type   string        `yaml:"type" validate:"required"`
	Fields []FieldDefDoc `yaml:"fields" validate:"dive"`
	Edges  []EdgeDefDoc  `yaml:"edges" validate:"dive"`
}

// FieldDefDoc declares a field; Type uses names like int, text or list<int>
type FieldDefDoc struct {
	Name       string   `yaml:"name" validate:"required"`
	Type       string   `yaml:"type" validate:"required"`
	Attributes []string `yaml:"attributes" validate:"dive,oneof=indexed immutable"`
}

// EdgeDefDoc declares an edge
type EdgeDefDoc struct {
	Name   string `yaml:"name" validate:"required"`
	Kind   string `yaml:"kind" validate:"oneof=one maybe_one many"`
	Policy string `yaml:"policy" validate:"omitempty,oneof=nothing shallow deep"`
}

// EntityDoc describes one entity. A zero id lets the store allocate one.
type EntityDoc struct {
	ID          uint64             `yaml:"id"`
	Type        string             `yaml:"type" validate:"required"`
	Created     uint64             `yaml:"created"`
	LastUpdated uint64             `yaml:"last_updated"`
	Fields      map[string]any     `yaml:"fields"`
	Edges       map[string]EdgeDoc `yaml:"edges" validate:"dive"`
}

// EdgeDoc holds the targets of an entity's edge
type EdgeDoc struct {
	Kind   string   `yaml:"kind" validate:"oneof=one maybe_one many"`
	IDs    []uint64 `yaml:"ids"`
	Policy string   `yaml:"policy" validate:"omitempty,oneof=nothing shallow deep"`
}

// QueryDoc is a named query
type QueryDoc struct {
	Name   string       `yaml:"name" validate:"required"`
	Where  ConditionDoc `yaml:"where"`
	Limit  int          `yaml:"limit" validate:"gte=0"`
	Offset int          `yaml:"offset" validate:"gte=0"`
}

// Load reads and decodes the fixture at path
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a fixture document. Unknown keys are rejected.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &f, nil
}

// Registry builds a registry holding the fixture's schemas
func (f *Fixture) Registry() (*ent.Registry, error) {
	reg := ent.NewRegistry()
	for _, doc := range f.Schemas {
		s, err := doc.Schema()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Schema converts the document into an ent.Schema
func (d SchemaDoc) Schema() (ent.Schema, error) {
	s := ent.Schema{Type: d.Type}
	for _, fd := range d.Fields {
		typ, err := ParseValueType(fd.Type)
		if err != nil {
			return ent.Schema{}, fmt.Errorf("schema %s field %s: %w", d.Type, fd.Name, err)
		}
		def := ent.FieldDefinition{Name: fd.Name, Type: typ}
		for _, name := range fd.Attributes {
			attr, err := ent.ParseFieldAttribute(name)
			if err != nil {
				return ent.Schema{}, fmt.Errorf("schema %s field %s: %w", d.Type, fd.Name, err)
			}
			def.Attributes = append(def.Attributes, attr)
		}
		s.Fields = append(s.Fields, def)
	}
	for _, ed := range d.Edges {
		kind, err := ent.ParseEdgeKind(ed.Kind)
		if err != nil {
			return ent.Schema{}, fmt.Errorf("schema %s edge %s: %w", d.Type, ed.Name, err)
		}
		policy, err := ent.ParseDeletionPolicy(ed.Policy)
		if err != nil {
			return ent.Schema{}, fmt.Errorf("schema %s edge %s: %w", d.Type, ed.Name, err)
		}
		s.Edges = append(s.Edges, ent.EdgeDefinition{Name: ed.Name, Kind: kind, Policy: policy})
	}
	return s, nil
}

// BuildEntities builds the fixture's entities. Types registered in reg start
// from their schema defaults and have field values coerced to the
// declared types; reg may be nil.
func (f *Fixture) BuildEntities(reg *ent.Registry) ([]*ent.Entity, error) {
	out := make([]*ent.Entity, 0, len(f.Entities))
	for i, doc := range f.Entities {
		e, err := doc.Entity(reg)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Entity converts the document into an entity
func (d EntityDoc) Entity(reg *ent.Registry) (*ent.Entity, error) {
	id := ent.ID(d.ID)
	e := ent.New(id, d.Type)

	var schema ent.Schema
	registered := false
	if reg != nil {
		if s, ok := reg.Lookup(d.Type); ok {
			schema, registered = s, true
			fresh, err := reg.New(d.Type, id)
			if err != nil {
				return nil, err
			}
			e = fresh
		}
	}

	for _, name := range sortedKeys(d.Fields) {
		v, err := ent.FromAny(d.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		if registered {
			if def, ok := schema.FieldDefinition(name); ok {
				v = Coerce(v, def.Type)
			}
		}
		e.WithField(name, v)
	}

	for _, name := range sortedKeys(d.Edges) {
		ed := d.Edges[name]
		ev, err := ed.Value()
		if err != nil {
			return nil, fmt.Errorf("edge %s: %w", name, err)
		}
		policy, err := ent.ParseDeletionPolicy(ed.Policy)
		if err != nil {
			return nil, fmt.Errorf("edge %s: %w", name, err)
		}
		e.WithEdge(name, ev, policy)
	}

	if d.Created != 0 || d.LastUpdated != 0 {
		e.WithTimestamps(d.Created, d.LastUpdated)
	}
	return e, nil
}

// Value converts the document into an edge value of the declared shape
func (d EdgeDoc) Value() (ent.EdgeValue, error) {
	kind, err := ent.ParseEdgeKind(d.Kind)
	if err != nil {
		return ent.EdgeValue{}, err
	}
	ids := make([]ent.ID, len(d.IDs))
	for i, id := range d.IDs {
		ids[i] = ent.ID(id)
	}

	switch kind {
	case ent.EdgeOne:
		if len(ids) != 1 {
			return ent.EdgeValue{}, fmt.Errorf("%w: one edge needs exactly one id, got %d", ent.ErrTooManyIDs, len(ids))
		}
		return ent.One(ids[0]), nil
	case ent.EdgeMaybeOne:
		if len(ids) > 1 {
			return ent.EdgeValue{}, fmt.Errorf("%w: maybe_one edge got %d ids", ent.ErrTooManyIDs, len(ids))
		}
		return ent.MaybeOne(ids...), nil
	default:
		return ent.Many(ids...), nil
	}
}

// Apply inserts the fixture's entities into db in document order and
// returns the ids they were stored under
func (f *Fixture) Apply(ctx context.Context, db store.Database, reg *ent.Registry) ([]ent.ID, error) {
	ents, err := f.BuildEntities(reg)
	if err != nil {
		return nil, err
	}
	ids := make([]ent.ID, 0, len(ents))
	for _, e := range ents {
		id, err := db.Insert(ctx, e)
		if err != nil {
			return ids, fmt.Errorf("insert %s: %w", e, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Query compiles the named query
func (f *Fixture) Query(name string) (query.Query, error) {
	for _, doc := range f.Queries {
		if doc.Name == name {
			return doc.Query()
		}
	}
	return query.Query{}, fmt.Errorf("no query named %q", name)
}

// Query compiles the document into a query
func (d QueryDoc) Query() (query.Query, error) {
	c, err := d.Where.Compile()
	if err != nil {
		return query.Query{}, fmt.Errorf("query %s: %w", d.Name, err)
	}
	return query.New(c).WithPage(d.Limit, d.Offset), nil
}

// ParseValueType parses type names such as int, text, list<int> or
// optional<map<float>>. A bare container name leaves the element type open.
func ParseValueType(s string) (ent.ValueType, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '<')
	if open < 0 {
		k, err := ent.ParseKind(s)
		if err != nil {
			return ent.ValueType{}, err
		}
		return ent.TypeOf(k), nil
	}
	if !strings.HasSuffix(s, ">") {
		return ent.ValueType{}, fmt.Errorf("unterminated type %q", s)
	}

	k, err := ent.ParseKind(s[:open])
	if err != nil {
		return ent.ValueType{}, err
	}
	elem, err := ParseValueType(s[open+1 : len(s)-1])
	if err != nil {
		return ent.ValueType{}, err
	}
	switch k {
	case ent.KindList:
		return ent.ListOf(elem), nil
	case ent.KindMap:
		return ent.MapOf(elem), nil
	case ent.KindOptional:
		return ent.OptionalOf(elem), nil
	}
	return ent.ValueType{}, fmt.Errorf("%s takes no element type", k)
}

// Coerce converts a decoded value toward a declared type where the
// conversion is lossless. Values that cannot be converted are returned as
// they are and left for schema validation to report.
func Coerce(v ent.Value, t ent.ValueType) ent.Value {
	switch t.Kind {
	case ent.KindUint:
		if i, ok := v.AsInt(); ok && i >= 0 {
			return ent.Uint(uint64(i))
		}
	case ent.KindFloat:
		if i, ok := v.AsInt(); ok {
			return ent.Float(float64(i))
		}
		if u, ok := v.AsUint(); ok {
			return ent.Float(float64(u))
		}
	case ent.KindChar:
		if s, ok := v.AsText(); ok && len([]rune(s)) == 1 {
			return ent.Char([]rune(s)[0])
		}
	case ent.KindUnit:
		if v.IsNone() {
			return ent.Unit()
		}
	case ent.KindOptional:
		if v.Kind() == ent.KindOptional || t.Elem == nil {
			return v
		}
		return ent.Some(Coerce(v, *t.Elem))
	case ent.KindList:
		items, ok := v.AsList()
		if !ok || t.Elem == nil {
			return v
		}
		out := make([]ent.Value, len(items))
		for i, item := range items {
			out[i] = Coerce(item, *t.Elem)
		}
		return ent.List(out...)
	case ent.KindMap:
		m, ok := v.AsMap()
		if !ok || t.Elem == nil {
			return v
		}
		out := make(map[string]ent.Value, len(m))
		for k, item := range m {
			out[k] = Coerce(item, *t.Elem)
		}
		return ent.Map(out)
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
