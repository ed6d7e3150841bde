// ABOUTME: Condition evaluation engine
// ABOUTME: Turns a condition tree into the set of matching entity ids

package query

import (
	"fmt"
	"sort"

	"github.com/nainya/entgraph/pkg/ent"
)

// Source is the read surface a store exposes to the engine
type Source interface {
	// IDs returns every stored id
	IDs() []ent.ID

	// TypeIDs returns the ids indexed under a type
	TypeIDs(typ string) []ent.ID

	// Contains reports whether an id is stored
	Contains(id ent.ID) bool

	// View calls fn with the stored entity, which fn must not retain or
	// modify. It reports whether the id was found.
	View(id ent.ID, fn func(e *ent.Entity)) bool
}

// IDSet is a set of entity ids. A nil IDSet passed as a pipeline means no
// pipeline has been established yet.
type IDSet map[ent.ID]struct{}

// NewIDSet builds a non-nil set holding ids
func NewIDSet(ids ...ent.ID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set
func (s IDSet) Contains(id ent.ID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order
func (s IDSet) Sorted() []ent.ID {
	out := make([]ent.ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Equal reports whether two sets hold the same ids
func (s IDSet) Equal(other IDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithObserver registers a callback invoked with the kind of every
// condition node evaluated
func WithObserver(fn func(kind string)) EngineOption {
	return func(e *Engine) {
		e.observe = fn
	}
}

// Engine evaluates condition trees against a Source
type Engine struct {
	src     Source
	observe func(kind string)
}

// NewEngine creates an engine reading from src
func NewEngine(src Source, opts ...EngineOption) *Engine {
	e := &Engine{src: src}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the ids matching c. pipeline is the candidate set
// narrowed by earlier stages, or nil when none is established; Field and
// Edge conditions match nothing without a pipeline.
func (e *Engine) Evaluate(c Condition, pipeline IDSet) (IDSet, error) {
	if c == nil {
		return nil, fmt.Errorf("nil condition")
	}
	if e.observe != nil {
		e.observe(c.Kind())
	}

	switch c := c.(type) {
	case Always:
		if pipeline != nil {
			return pipeline, nil
		}
		return NewIDSet(e.src.IDs()...), nil

	case Never:
		return IDSet{}, nil

	case HasID:
		if pipeline != nil {
			if pipeline.Contains(c.ID) {
				return NewIDSet(c.ID), nil
			}
			return IDSet{}, nil
		}
		if e.src.Contains(c.ID) {
			return NewIDSet(c.ID), nil
		}
		return IDSet{}, nil

	case HasType:
		if pipeline == nil {
			return NewIDSet(e.src.TypeIDs(c.Type)...), nil
		}
		return e.filter(pipeline, func(en *ent.Entity) (bool, error) {
			return en.Type() == c.Type, nil
		})

	case And:
		left, err := e.Evaluate(c.Left, pipeline)
		if err != nil {
			return nil, err
		}
		return e.Evaluate(c.Right, left)

	case Or:
		left, right, err := e.both(c.Left, c.Right, pipeline)
		if err != nil {
			return nil, err
		}
		out := make(IDSet, len(left)+len(right))
		for id := range left {
			out[id] = struct{}{}
		}
		for id := range right {
			out[id] = struct{}{}
		}
		return out, nil

	case Xor:
		left, right, err := e.both(c.Left, c.Right, pipeline)
		if err != nil {
			return nil, err
		}
		out := make(IDSet)
		for id := range left {
			if !right.Contains(id) {
				out[id] = struct{}{}
			}
		}
		for id := range right {
			if !left.Contains(id) {
				out[id] = struct{}{}
			}
		}
		return out, nil

	case Not:
		base := pipeline
		if base == nil {
			base = NewIDSet(e.src.IDs()...)
		}
		removed, err := e.Evaluate(c.Cond, pipeline)
		if err != nil {
			return nil, err
		}
		out := make(IDSet, len(base))
		for id := range base {
			if !removed.Contains(id) {
				out[id] = struct{}{}
			}
		}
		return out, nil

	case Field:
		if pipeline == nil {
			return IDSet{}, nil
		}
		return e.filter(pipeline, func(en *ent.Entity) (bool, error) {
			v, ok := en.FieldValue(c.Name)
			if !ok {
				return false, nil
			}
			matched, err := c.Pred.Matches(v)
			if err != nil {
				return false, fmt.Errorf("field %q of %s: %w", c.Name, en, err)
			}
			return matched, nil
		})

	case Edge:
		if pipeline == nil {
			return IDSet{}, nil
		}
		return e.evaluateEdge(c, pipeline)

	case Created:
		return e.scan(pipeline, func(en *ent.Entity) (bool, error) {
			return c.Time.Matches(en.Created()), nil
		})

	case LastUpdated:
		return e.scan(pipeline, func(en *ent.Entity) (bool, error) {
			return c.Time.Matches(en.LastUpdated()), nil
		})
	}

	return nil, fmt.Errorf("unsupported condition %T", c)
}

// both evaluates two conditions independently against the same pipeline
func (e *Engine) both(a, b Condition, pipeline IDSet) (IDSet, IDSet, error) {
	left, err := e.Evaluate(a, pipeline)
	if err != nil {
		return nil, nil, err
	}
	right, err := e.Evaluate(b, pipeline)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (e *Engine) evaluateEdge(c Edge, pipeline IDSet) (IDSet, error) {
	out := make(IDSet)
	for _, id := range pipeline.Sorted() {
		var targets []ent.ID
		found := false
		e.src.View(id, func(en *ent.Entity) {
			if edge, ok := en.Edge(c.Name); ok {
				targets = edge.Value.IDs()
				found = true
			}
		})
		if !found {
			continue
		}

		targetSet := NewIDSet(targets...)
		matched, err := e.Evaluate(c.Cond.Cond, targetSet)
		if err != nil {
			return nil, fmt.Errorf("edge %q of %d: %w", c.Name, id, err)
		}
		if c.Cond.Holds(len(matched), len(targetSet)) {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// scan filters the pipeline, or every stored id when there is none
func (e *Engine) scan(pipeline IDSet, keep func(*ent.Entity) (bool, error)) (IDSet, error) {
	if pipeline == nil {
		pipeline = NewIDSet(e.src.IDs()...)
	}
	return e.filter(pipeline, keep)
}

// filter keeps the ids of stored entities for which keep returns true.
// Ids no longer stored are dropped.
func (e *Engine) filter(pipeline IDSet, keep func(*ent.Entity) (bool, error)) (IDSet, error) {
	out := make(IDSet)
	for _, id := range pipeline.Sorted() {
		var (
			matched bool
			err     error
		)
		if !e.src.View(id, func(en *ent.Entity) { matched, err = keep(en) }) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if matched {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// Paginate returns the page of items selected by limit and offset.
// A limit of 0 or less means no limit.
func Paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}

	start := offset
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return items[start:end]
}
