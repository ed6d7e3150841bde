// ABOUTME: Schema descriptors for entity types
// ABOUTME: Registry validates definitions and conforms entities to them

package ent

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("ent: register identifier validation: %v", err))
	}
	v.RegisterStructValidation(schemaStructLevel, Schema{})
	return v
}

// schemaStructLevel rejects schemas that reuse a member name
func schemaStructLevel(sl validator.StructLevel) {
	s := sl.Current().Interface().(Schema)
	seen := make(map[string]struct{}, len(s.Fields)+len(s.Edges))
	for _, f := range s.Fields {
		if _, dup := seen[f.Name]; dup {
			sl.ReportError(s.Fields, "Fields", "Fields", "unique_member", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	for _, e := range s.Edges {
		if _, dup := seen[e.Name]; dup {
			sl.ReportError(s.Edges, "Edges", "Edges", "unique_member", e.Name)
		}
		seen[e.Name] = struct{}{}
	}
}

// FieldDefinition declares a field of an entity type
type FieldDefinition struct {
	Name       string           `validate:"required,identifier"`
	Type       ValueType        `validate:"-"`
	Attributes []FieldAttribute `validate:"dive,min=1,max=2"`
}

// EdgeDefinition declares an edge of an entity type
type EdgeDefinition struct {
	Name   string             `validate:"required,identifier"`
	Kind   EdgeKind           `validate:"lte=2"`
	Policy EdgeDeletionPolicy `validate:"lte=2"`
}

// Schema describes the fields and edges of one entity type
type Schema struct {
	Type   string            `validate:"required,identifier"`
	Fields []FieldDefinition `validate:"dive"`
	Edges  []EdgeDefinition  `validate:"dive"`
}

// Validate checks the schema definition itself
func (s Schema) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSchema, s.Type, verrs)
		}
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return nil
}

// FieldDefinition returns the definition of the named field
func (s Schema) FieldDefinition(name string) (FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// EdgeDefinition returns the definition of the named edge
func (s Schema) EdgeDefinition(name string) (EdgeDefinition, bool) {
	for _, e := range s.Edges {
		if e.Name == name {
			return e, true
		}
	}
	return EdgeDefinition{}, false
}

// Check reports the first way e does not conform to the schema
func (s Schema) Check(e *Entity) error {
	if e.typ != s.Type {
		return fmt.Errorf("%w: entity is %q, schema is %q", ErrWrongType, e.typ, s.Type)
	}
	for _, def := range s.Fields {
		f, ok := e.fields[def.Name]
		if !ok {
			return fmt.Errorf("%w: %q on %s", ErrMissingField, def.Name, s.Type)
		}
		if !def.Type.Compatible(f.Value.Type()) {
			return fmt.Errorf("%w: field %q is declared %s, got %s", ErrWrongType, def.Name, def.Type, f.Value.Type())
		}
	}
	for _, def := range s.Edges {
		ed, ok := e.edges[def.Name]
		if !ok {
			return fmt.Errorf("%w: %q on %s", ErrMissingEdge, def.Name, s.Type)
		}
		if ed.Value.Kind() != def.Kind {
			return fmt.Errorf("%w: edge %q is declared %s, got %s", ErrWrongType, def.Name, def.Kind, ed.Value.Kind())
		}
	}
	for name := range e.fields {
		if _, ok := s.FieldDefinition(name); !ok {
			return fmt.Errorf("%w: undeclared field %q on %s", ErrWrongType, name, s.Type)
		}
	}
	for name := range e.edges {
		if _, ok := s.EdgeDefinition(name); !ok {
			return fmt.Errorf("%w: undeclared edge %q on %s", ErrWrongType, name, s.Type)
		}
	}
	return nil
}

// conform checks e and stamps declared attributes and policies onto it
func (s Schema) conform(e *Entity) error {
	if err := s.Check(e); err != nil {
		return err
	}
	for _, def := range s.Fields {
		f := e.fields[def.Name]
		f.Attributes = append([]FieldAttribute(nil), def.Attributes...)
		e.fields[def.Name] = f
	}
	for _, def := range s.Edges {
		ed := e.edges[def.Name]
		ed.Policy = def.Policy
		e.edges[def.Name] = ed
	}
	return nil
}

// Registry holds the schemas of known entity types
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

// Register validates and adds a schema, replacing any schema of the same type
func (r *Registry) Register(s Schema) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Type] = s
	return nil
}

// Lookup returns the schema registered for a type
func (r *Registry) Lookup(typ string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[typ]
	return s, ok
}

// Types returns the registered type names in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// New creates an entity of a registered type. Fields start at the zero
// value of their declared type; MaybeOne and Many edges start empty. One
// edges have no sensible default and must be set before the entity is
// inserted.
func (r *Registry) New(typ string, id ID) (*Entity, error) {
	s, ok := r.Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	e := New(id, typ)
	for _, def := range s.Fields {
		e.WithField(def.Name, ZeroValue(def.Type), def.Attributes...)
	}
	for _, def := range s.Edges {
		switch def.Kind {
		case EdgeMaybeOne:
			e.WithEdge(def.Name, MaybeOne(), def.Policy)
		case EdgeMany:
			e.WithEdge(def.Name, Many(), def.Policy)
		}
	}
	return e, nil
}

// Conform validates e against its registered schema and stamps the
// declared field attributes and edge policies onto it. Entities of
// unregistered types are left untouched; the second result reports
// whether a schema applied.
func (r *Registry) Conform(e *Entity) (bool, error) {
	s, ok := r.Lookup(e.typ)
	if !ok {
		return false, nil
	}
	return true, s.conform(e)
}

// ZeroValue returns the default value for a type
func ZeroValue(t ValueType) Value {
	switch t.Kind {
	case KindBool:
		return Bool(false)
	case KindChar:
		return Char(0)
	case KindInt:
		return Int(0)
	case KindUint:
		return Uint(0)
	case KindFloat:
		return Float(0)
	case KindText:
		return Text("")
	case KindList:
		return List()
	case KindMap:
		return Map(nil)
	case KindOptional:
		return None()
	default:
		return Unit()
	}
}
