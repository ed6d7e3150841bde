// ABOUTME: Filter and predicate sugar over condition trees
// ABOUTME: Filters compile into the same Condition nodes the engine evaluates

package query

import (
	"fmt"

	"github.com/nainya/entgraph/pkg/ent"
)

// PredicateOp names a value predicate
type PredicateOp uint8

const (
	PredEquals PredicateOp = iota
	PredNotEquals
	PredLessThan
	PredLessThanOrEquals
	PredGreaterThan
	PredGreaterThanOrEquals
	PredInRange
	PredInSet
	PredNotInSet
	PredAnd
	PredOr
	PredNot
)

// Predicate is a value test applied to a field. Richer predicates are
// expressed with the three field comparisons combined by And, Or and Not.
type Predicate struct {
	Op     PredicateOp
	Values []ent.Value
	Preds  []Predicate
}

func Equals(v ent.Value) Predicate { return Predicate{Op: PredEquals, Values: []ent.Value{v}} }
func NotEquals(v ent.Value) Predicate { return Predicate{Op: PredNotEquals, Values: []ent.Value{v}} }
func Less(v ent.Value) Predicate { return Predicate{Op: PredLessThan, Values: []ent.Value{v}} }
func LessOrEqual(v ent.Value) Predicate { return Predicate{Op: PredLessThanOrEquals, Values: []ent.Value{v}} }
func Greater(v ent.Value) Predicate { return Predicate{Op: PredGreaterThan, Values: []ent.Value{v}} }
func GreaterOrEqual(v ent.Value) Predicate {
	return Predicate{Op: PredGreaterThanOrEquals, Values: []ent.Value{v}}
}

// InRange matches values between lo and hi inclusive
func InRange(lo, hi ent.Value) Predicate {
	return Predicate{Op: PredInRange, Values: []ent.Value{lo, hi}}
}

// InSet matches values equal to any of vs
func InSet(vs ...ent.Value) Predicate { return Predicate{Op: PredInSet, Values: vs} }

// NotInSet matches values equal to none of vs
func NotInSet(vs ...ent.Value) Predicate { return Predicate{Op: PredNotInSet, Values: vs} }

// AllPreds matches when every predicate matches
func AllPreds(ps ...Predicate) Predicate { return Predicate{Op: PredAnd, Preds: ps} }

// AnyPred matches when at least one predicate matches
func AnyPred(ps ...Predicate) Predicate { return Predicate{Op: PredOr, Preds: ps} }

// NotPred inverts a predicate
func NotPred(p Predicate) Predicate { return Predicate{Op: PredNot, Preds: []Predicate{p}} }

// compile turns the predicate into a condition over the named field
func (p Predicate) compile(name string) (Condition, error) {
	field := func(fp FieldPredicate) Condition { return Field{Name: name, Pred: fp} }
	need := func(n int) error {
		if len(p.Values) != n {
			return fmt.Errorf("predicate %d on %q needs %d values, got %d", p.Op, name, n, len(p.Values))
		}
		return nil
	}

	switch p.Op {
	case PredEquals:
		if err := need(1); err != nil {
			return nil, err
		}
		return field(EqualTo(p.Values[0])), nil
	case PredNotEquals:
		if err := need(1); err != nil {
			return nil, err
		}
		return Not{Cond: field(EqualTo(p.Values[0]))}, nil
	case PredLessThan:
		if err := need(1); err != nil {
			return nil, err
		}
		return field(LessThan(p.Values[0])), nil
	case PredLessThanOrEquals:
		if err := need(1); err != nil {
			return nil, err
		}
		return Or{Left: field(LessThan(p.Values[0])), Right: field(EqualTo(p.Values[0]))}, nil
	case PredGreaterThan:
		if err := need(1); err != nil {
			return nil, err
		}
		return field(GreaterThan(p.Values[0])), nil
	case PredGreaterThanOrEquals:
		if err := need(1); err != nil {
			return nil, err
		}
		return Or{Left: field(GreaterThan(p.Values[0])), Right: field(EqualTo(p.Values[0]))}, nil
	case PredInRange:
		if err := need(2); err != nil {
			return nil, err
		}
		lo, hi := p.Values[0], p.Values[1]
		return And{
			Left:  Or{Left: field(GreaterThan(lo)), Right: field(EqualTo(lo))},
			Right: Or{Left: field(LessThan(hi)), Right: field(EqualTo(hi))},
		}, nil
	case PredInSet, PredNotInSet:
		conds := make([]Condition, len(p.Values))
		for i, v := range p.Values {
			conds[i] = field(EqualTo(v))
		}
		if p.Op == PredNotInSet {
			return Not{Cond: AnyOf(conds...)}, nil
		}
		return AnyOf(conds...), nil
	case PredAnd, PredOr:
		conds := make([]Condition, len(p.Preds))
		for i, sub := range p.Preds {
			c, err := sub.compile(name)
			if err != nil {
				return nil, err
			}
			conds[i] = c
		}
		if p.Op == PredAnd {
			return AllOf(conds...), nil
		}
		return AnyOf(conds...), nil
	case PredNot:
		if len(p.Preds) != 1 {
			return nil, fmt.Errorf("not predicate on %q needs one operand, got %d", name, len(p.Preds))
		}
		c, err := p.Preds[0].compile(name)
		if err != nil {
			return nil, err
		}
		return Not{Cond: c}, nil
	}
	return nil, fmt.Errorf("unknown predicate op %d", p.Op)
}

// Filter is one stage of a filter chain
type Filter interface {
	// Compile returns the condition the filter stands for
	Compile() (Condition, error)
}

type idFilter []ent.ID
type typeFilter []string
type createdFilter TimeCondition
type lastUpdatedFilter TimeCondition

type fieldFilter struct {
	name string
	pred Predicate
}

type edgeFilter struct {
	name  string
	inner Filter
}

// ByID keeps entities with any of the ids
func ByID(ids ...ent.ID) Filter { return idFilter(ids) }

// ByType keeps entities of any of the types
func ByType(types ...string) Filter { return typeFilter(types) }

// ByCreated keeps entities by creation time
func ByCreated(tc TimeCondition) Filter { return createdFilter(tc) }

// ByLastUpdated keeps entities by last update time
func ByLastUpdated(tc TimeCondition) Filter { return lastUpdatedFilter(tc) }

// ByField keeps entities whose field satisfies p
func ByField(name string, p Predicate) Filter { return fieldFilter{name: name, pred: p} }

// ByEdge keeps entities with at least one target on the edge that passes
// the inner filter
func ByEdge(name string, inner Filter) Filter { return edgeFilter{name: name, inner: inner} }

func (f idFilter) Compile() (Condition, error) {
	conds := make([]Condition, len(f))
	for i, id := range f {
		conds[i] = HasID{ID: id}
	}
	return AnyOf(conds...), nil
}

func (f typeFilter) Compile() (Condition, error) {
	conds := make([]Condition, len(f))
	for i, t := range f {
		conds[i] = HasType{Type: t}
	}
	return AnyOf(conds...), nil
}

func (f createdFilter) Compile() (Condition, error) {
	return Created{Time: TimeCondition(f)}, nil
}

func (f lastUpdatedFilter) Compile() (Condition, error) {
	return LastUpdated{Time: TimeCondition(f)}, nil
}

func (f fieldFilter) Compile() (Condition, error) {
	return f.pred.compile(f.name)
}

func (f edgeFilter) Compile() (Condition, error) {
	inner, err := f.inner.Compile()
	if err != nil {
		return nil, fmt.Errorf("edge %q: %w", f.name, err)
	}
	return Edge{Name: f.name, Cond: EdgeAny(inner)}, nil
}

// Filters compiles a chain of filters into a query. Each filter narrows
// the result of the ones before it; the chain starts from every stored
// entity.
func Filters(fs ...Filter) (Query, error) {
	q := New(Always{})
	for i, f := range fs {
		c, err := f.Compile()
		if err != nil {
			return Query{}, fmt.Errorf("filter %d: %w", i, err)
		}
		q = q.Chain(c)
	}
	return q, nil
}
