// ABOUTME: Query condition tree and builder types
// ABOUTME: Conditions, field/edge/time predicates and the fluent query builder

package query

import (
	"fmt"

	"github.com/nainya/entgraph/pkg/ent"
)

// Condition is a node of a query's predicate tree
type Condition interface {
	// Kind names the node, e.g. "and" or "has_type"
	Kind() string
	fmt.Stringer
	isCondition()
}

// Always matches every entity in the pipeline, or the whole store
type Always struct{}

// Never matches nothing
type Never struct{}

// HasID matches a single id
type HasID struct{ ID ent.ID }

// HasType matches entities of a type
type HasType struct{ Type string }

// And evaluates Left, then narrows its result with Right
type And struct{ Left, Right Condition }

// Or unions the results of Left and Right, each evaluated independently
type Or struct{ Left, Right Condition }

// Xor keeps ids matched by exactly one of Left and Right
type Xor struct{ Left, Right Condition }

// Not removes the ids matched by Cond from the pipeline or the whole store
type Not struct{ Cond Condition }

// Field matches entities whose named field satisfies Pred. With no
// pipeline it matches nothing.
type Field struct {
	Name string
	Pred FieldPredicate
}

// Edge matches entities whose named edge satisfies Cond. With no pipeline
// it matches nothing.
type Edge struct {
	Name string
	Cond EdgeCondition
}

// Created matches entities by creation time
type Created struct{ Time TimeCondition }

// LastUpdated matches entities by last update time
type LastUpdated struct{ Time TimeCondition }

func (Always) isCondition() {}
func (Never) isCondition() {}
func (HasID) isCondition() {}
func (HasType) isCondition() {}
func (And) isCondition() {}
func (Or) isCondition() {}
func (Xor) isCondition() {}
func (Not) isCondition() {}
func (Field) isCondition() {}
func (Edge) isCondition() {}
func (Created) isCondition() {}
func (LastUpdated) isCondition() {}

func (Always) Kind() string { return "always" }
func (Never) Kind() string { return "never" }
func (HasID) Kind() string { return "has_id" }
func (HasType) Kind() string { return "has_type" }
func (And) Kind() string { return "and" }
func (Or) Kind() string { return "or" }
func (Xor) Kind() string { return "xor" }
func (Not) Kind() string { return "not" }
func (Field) Kind() string { return "field" }
func (Edge) Kind() string { return "edge" }
func (Created) Kind() string { return "created" }
func (LastUpdated) Kind() string { return "last_updated" }

func (Always) String() string { return "always" }
func (Never) String() string { return "never" }
func (c HasID) String() string { return fmt.Sprintf("id == %d", c.ID) }
func (c HasType) String() string { return fmt.Sprintf("type == %q", c.Type) }
func (c And) String() string { return fmt.Sprintf("(%s and %s)", c.Left, c.Right) }
func (c Or) String() string { return fmt.Sprintf("(%s or %s)", c.Left, c.Right) }
func (c Xor) String() string { return fmt.Sprintf("(%s xor %s)", c.Left, c.Right) }
func (c Not) String() string { return fmt.Sprintf("not %s", c.Cond) }
func (c Field) String() string { return fmt.Sprintf("%s %s", c.Name, c.Pred) }
func (c Edge) String() string { return fmt.Sprintf("%s -> %s", c.Name, c.Cond) }
func (c Created) String() string { return fmt.Sprintf("created %s", c.Time) }
func (c LastUpdated) String() string {
	return fmt.Sprintf("last_updated %s", c.Time)
}

// AllOf folds conditions into a left-leaning And chain. No conditions
// yields Always.
func AllOf(conds ...Condition) Condition {
	if len(conds) == 0 {
		return Always{}
	}
	out := conds[0]
	for _, c := range conds[1:] {
		out = And{Left: out, Right: c}
	}
	return out
}

// AnyOf folds conditions into an Or chain. No conditions yields Never.
func AnyOf(conds ...Condition) Condition {
	if len(conds) == 0 {
		return Never{}
	}
	out := conds[0]
	for _, c := range conds[1:] {
		out = Or{Left: out, Right: c}
	}
	return out
}

// CompareOp is the comparison a field predicate performs
type CompareOp uint8

const (
	OpEqualTo CompareOp = iota
	OpLessThan
	OpGreaterThan
)

// FieldPredicate compares a field's value with a fixed value
type FieldPredicate struct {
	Op    CompareOp
	Value ent.Value
}

func EqualTo(v ent.Value) FieldPredicate { return FieldPredicate{Op: OpEqualTo, Value: v} }
func LessThan(v ent.Value) FieldPredicate { return FieldPredicate{Op: OpLessThan, Value: v} }
func GreaterThan(v ent.Value) FieldPredicate { return FieldPredicate{Op: OpGreaterThan, Value: v} }

// Matches applies the predicate to a field value. A value whose type is
// incompatible with the predicate's value is an error wrapping
// ent.ErrWrongType. Values with no ordering never match LessThan or
// GreaterThan.
func (p FieldPredicate) Matches(v ent.Value) (bool, error) {
	if !p.Value.Type().Compatible(v.Type()) {
		return false, fmt.Errorf("%w: cannot compare %s with %s", ent.ErrWrongType, v.Type(), p.Value.Type())
	}
	switch p.Op {
	case OpEqualTo:
		return v.Equal(p.Value), nil
	case OpLessThan:
		c, ok := v.Compare(p.Value)
		return ok && c < 0, nil
	case OpGreaterThan:
		c, ok := v.Compare(p.Value)
		return ok && c > 0, nil
	}
	return false, fmt.Errorf("unknown compare op %d", p.Op)
}

func (p FieldPredicate) String() string {
	switch p.Op {
	case OpLessThan:
		return "< " + p.Value.String()
	case OpGreaterThan:
		return "> " + p.Value.String()
	default:
		return "== " + p.Value.String()
	}
}

// Quantifier decides how many edge targets must match
type Quantifier uint8

const (
	QuantAny Quantifier = iota
	QuantAll
	QuantExactly
)

// EdgeCondition applies Cond to the targets of an edge
type EdgeCondition struct {
	Quant Quantifier
	N     int
	Cond  Condition
}

// EdgeAny holds when at least one target matches
func EdgeAny(c Condition) EdgeCondition { return EdgeCondition{Quant: QuantAny, Cond: c} }

// EdgeAll holds when the edge has targets and every one matches
func EdgeAll(c Condition) EdgeCondition { return EdgeCondition{Quant: QuantAll, Cond: c} }

// EdgeExactly holds when exactly n targets match
func EdgeExactly(n int, c Condition) EdgeCondition {
	return EdgeCondition{Quant: QuantExactly, N: n, Cond: c}
}

// Holds reports whether matched out of total targets satisfies the
// quantifier
func (ec EdgeCondition) Holds(matched, total int) bool {
	switch ec.Quant {
	case QuantAny:
		return matched > 0
	case QuantAll:
		return total > 0 && matched == total
	case QuantExactly:
		return matched == ec.N
	}
	return false
}

func (ec EdgeCondition) String() string {
	switch ec.Quant {
	case QuantAll:
		return fmt.Sprintf("all(%s)", ec.Cond)
	case QuantExactly:
		return fmt.Sprintf("exactly(%d, %s)", ec.N, ec.Cond)
	default:
		return fmt.Sprintf("any(%s)", ec.Cond)
	}
}

// TimeOp is the comparison a time condition performs
type TimeOp uint8

const (
	TimeBefore TimeOp = iota
	TimeOnOrBefore
	TimeAfter
	TimeOnOrAfter
	TimeBetween
	TimeOnOrBetween
)

var timeOpNames = map[TimeOp]string{
	TimeBefore:      "before",
	TimeOnOrBefore:  "on_or_before",
	TimeAfter:       "after",
	TimeOnOrAfter:   "on_or_after",
	TimeBetween:     "between",
	TimeOnOrBetween: "on_or_between",
}

// ParseTimeOp maps a name such as "on_or_after" to its TimeOp
func ParseTimeOp(s string) (TimeOp, error) {
	for op, name := range timeOpNames {
		if name == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown time op %q", s)
}

// TimeCondition compares a millisecond timestamp with one or two bounds
type TimeCondition struct {
	Op   TimeOp
	A, B uint64
}

func Before(t uint64) TimeCondition { return TimeCondition{Op: TimeBefore, A: t} }
func OnOrBefore(t uint64) TimeCondition { return TimeCondition{Op: TimeOnOrBefore, A: t} }
func After(t uint64) TimeCondition { return TimeCondition{Op: TimeAfter, A: t} }
func OnOrAfter(t uint64) TimeCondition { return TimeCondition{Op: TimeOnOrAfter, A: t} }

// Between is exclusive of both bounds
func Between(a, b uint64) TimeCondition { return TimeCondition{Op: TimeBetween, A: a, B: b} }

// OnOrBetween is inclusive of both bounds
func OnOrBetween(a, b uint64) TimeCondition { return TimeCondition{Op: TimeOnOrBetween, A: a, B: b} }

// Matches applies the condition to a timestamp
func (tc TimeCondition) Matches(t uint64) bool {
	switch tc.Op {
	case TimeBefore:
		return t < tc.A
	case TimeOnOrBefore:
		return t <= tc.A
	case TimeAfter:
		return t > tc.A
	case TimeOnOrAfter:
		return t >= tc.A
	case TimeBetween:
		return t > tc.A && t < tc.B
	case TimeOnOrBetween:
		return t >= tc.A && t <= tc.B
	}
	return false
}

func (tc TimeCondition) String() string {
	if tc.Op == TimeBetween || tc.Op == TimeOnOrBetween {
		return fmt.Sprintf("%s(%d, %d)", timeOpNames[tc.Op], tc.A, tc.B)
	}
	return fmt.Sprintf("%s(%d)", timeOpNames[tc.Op], tc.A)
}

// Query wraps the condition tree handed to a store, plus optional
// pagination applied after materialization
type Query struct {
	cond   Condition
	limit  int
	offset int
}

// New wraps a condition as a query. A nil condition is Always.
func New(c Condition) Query {
	if c == nil {
		c = Always{}
	}
	return Query{cond: c}
}

// Condition returns the query's condition tree
func (q Query) Condition() Condition {
	if q.cond == nil {
		return Always{}
	}
	return q.cond
}

// Chain narrows the query with another condition
func (q Query) Chain(c Condition) Query {
	q.cond = And{Left: q.Condition(), Right: c}
	return q
}

// Limit returns the maximum number of results, or 0 for no limit
func (q Query) Limit() int { return q.limit }

// Offset returns the number of leading results to skip
func (q Query) Offset() int { return q.offset }

// WithPage returns a copy of q with pagination set
func (q Query) WithPage(limit, offset int) Query {
	q.limit = limit
	q.offset = offset
	return q
}

func (q Query) String() string {
	return q.Condition().String()
}

// Builder provides a fluent interface for building queries. It starts from
// Always, so every Where narrows an established pipeline.
type Builder struct {
	query Query
}

// NewBuilder creates a builder matching every entity
func NewBuilder() *Builder {
	return &Builder{query: New(Always{})}
}

// Where narrows the query with a condition
func (b *Builder) Where(c Condition) *Builder {
	b.query = b.query.Chain(c)
	return b
}

// WhereID narrows the query to a single id
func (b *Builder) WhereID(id ent.ID) *Builder {
	return b.Where(HasID{ID: id})
}

// WhereType narrows the query to a type
func (b *Builder) WhereType(typ string) *Builder {
	return b.Where(HasType{Type: typ})
}

// WhereField narrows the query by a field predicate
func (b *Builder) WhereField(name string, p FieldPredicate) *Builder {
	return b.Where(Field{Name: name, Pred: p})
}

// WhereEdge narrows the query by an edge condition
func (b *Builder) WhereEdge(name string, ec EdgeCondition) *Builder {
	return b.Where(Edge{Name: name, Cond: ec})
}

// WhereCreated narrows the query by creation time
func (b *Builder) WhereCreated(tc TimeCondition) *Builder {
	return b.Where(Created{Time: tc})
}

// WhereLastUpdated narrows the query by last update time
func (b *Builder) WhereLastUpdated(tc TimeCondition) *Builder {
	return b.Where(LastUpdated{Time: tc})
}

// Or narrows the query with either of two conditions
func (b *Builder) Or(x, y Condition) *Builder {
	return b.Where(Or{Left: x, Right: y})
}

// Not narrows the query to entities not matching c
func (b *Builder) Not(c Condition) *Builder {
	return b.Where(Not{Cond: c})
}

// Limit sets the result limit
func (b *Builder) Limit(limit int) *Builder {
	b.query.limit = limit
	return b
}

// Offset sets the result offset
func (b *Builder) Offset(offset int) *Builder {
	b.query.offset = offset
	return b
}

// Build returns the constructed query
func (b *Builder) Build() Query {
	return b.query
}
