// ABOUTME: Recursive condition documents for fixture queries
// ABOUTME: Each document node sets exactly one key and compiles to a Condition

package fixture

import (
	"fmt"
	"strings"

	"github.com/nainya/entgraph/pkg/ent"
	"github.com/nainya/entgraph/pkg/query"
)

// ConditionDoc is one node of a condition tree. Exactly one key is set.
//
//	and: [{type: user}, {field: {name: age, op: ge, value: 18}}]
type ConditionDoc struct {
	Always      bool           `yaml:"always,omitempty"`
	Never       bool           `yaml:"never,omitempty"`
	ID          *uint64        `yaml:"id,omitempty"`
	Type        string         `yaml:"type,omitempty"`
	And         []ConditionDoc `yaml:"and,omitempty"`
	Or          []ConditionDoc `yaml:"or,omitempty"`
	Xor         []ConditionDoc `yaml:"xor,omitempty"`
	Not         *ConditionDoc  `yaml:"not,omitempty"`
	Field       *FieldDoc      `yaml:"field,omitempty"`
	Edge        *EdgeCondDoc   `yaml:"edge,omitempty"`
	Created     *TimeDoc       `yaml:"created,omitempty"`
	LastUpdated *TimeDoc       `yaml:"last_updated,omitempty"`
}

// FieldDoc compares a field with one or more values. Op is one of eq, ne,
// lt, le, gt, ge, in, not_in or range.
type FieldDoc struct {
	Name   string `yaml:"name"`
	Op     string `yaml:"op"`
	Value  any    `yaml:"value"`
	Values []any  `yaml:"values"`
}

// EdgeCondDoc applies a condition to the targets of an edge. Quant is
// any, all or exactly; N is the count for exactly.
type EdgeCondDoc struct {
	Name  string       `yaml:"name"`
	Quant string       `yaml:"quant"`
	N     int          `yaml:"n"`
	Where ConditionDoc `yaml:"where"`
}

// TimeDoc compares a timestamp in milliseconds. Op is before,
// on_or_before, after, on_or_after, between or on_or_between.
type TimeDoc struct {
	Op    string `yaml:"op"`
	At    uint64 `yaml:"at"`
	Until uint64 `yaml:"until"`
}

func (d ConditionDoc) keys() []string {
	var set []string
	if d.Always {
		set = append(set, "always")
	}
	if d.Never {
		set = append(set, "never")
	}
	if d.ID != nil {
		set = append(set, "id")
	}
	if d.Type != "" {
		set = append(set, "type")
	}
	if d.And != nil {
		set = append(set, "and")
	}
	if d.Or != nil {
		set = append(set, "or")
	}
	if d.Xor != nil {
		set = append(set, "xor")
	}
	if d.Not != nil {
		set = append(set, "not")
	}
	if d.Field != nil {
		set = append(set, "field")
	}
	if d.Edge != nil {
		set = append(set, "edge")
	}
	if d.Created != nil {
		set = append(set, "created")
	}
	if d.LastUpdated != nil {
		set = append(set, "last_updated")
	}
	return set
}

// Compile converts the document into a condition tree
func (d ConditionDoc) Compile() (query.Condition, error) {
	keys := d.keys()
	if len(keys) != 1 {
		return nil, fmt.Errorf("condition needs exactly one key, got %d (%s)", len(keys), strings.Join(keys, ", "))
	}

	switch {
	case d.Always:
		return query.Always{}, nil
	case d.Never:
		return query.Never{}, nil
	case d.ID != nil:
		return query.HasID{ID: ent.ID(*d.ID)}, nil
	case d.Type != "":
		return query.HasType{Type: d.Type}, nil
	case d.And != nil:
		conds, err := compileAll("and", d.And)
		if err != nil {
			return nil, err
		}
		return query.AllOf(conds...), nil
	case d.Or != nil:
		conds, err := compileAll("or", d.Or)
		if err != nil {
			return nil, err
		}
		return query.AnyOf(conds...), nil
	case d.Xor != nil:
		if len(d.Xor) != 2 {
			return nil, fmt.Errorf("xor needs two operands, got %d", len(d.Xor))
		}
		conds, err := compileAll("xor", d.Xor)
		if err != nil {
			return nil, err
		}
		return query.Xor{Left: conds[0], Right: conds[1]}, nil
	case d.Not != nil:
		inner, err := d.Not.Compile()
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return query.Not{Cond: inner}, nil
	case d.Field != nil:
		return d.Field.compile()
	case d.Edge != nil:
		return d.Edge.compile()
	case d.Created != nil:
		tc, err := d.Created.condition()
		if err != nil {
			return nil, fmt.Errorf("created: %w", err)
		}
		return query.Created{Time: tc}, nil
	default:
		tc, err := d.LastUpdated.condition()
		if err != nil {
			return nil, fmt.Errorf("last_updated: %w", err)
		}
		return query.LastUpdated{Time: tc}, nil
	}
}

func compileAll(op string, docs []ConditionDoc) ([]query.Condition, error) {
	out := make([]query.Condition, len(docs))
	for i, doc := range docs {
		c, err := doc.Compile()
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
		}
		out[i] = c
	}
	return out, nil
}

func (d FieldDoc) compile() (query.Condition, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("field condition needs a name")
	}

	one := func() (ent.Value, error) { return ent.FromAny(d.Value) }
	many := func() ([]ent.Value, error) {
		out := make([]ent.Value, len(d.Values))
		for i, x := range d.Values {
			v, err := ent.FromAny(x)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	var (
		pred query.Predicate
		err  error
	)
	switch d.Op {
	case "eq", "ne", "lt", "le", "gt", "ge":
		var v ent.Value
		if v, err = one(); err != nil {
			break
		}
		pred = map[string]func(ent.Value) query.Predicate{
			"eq": query.Equals,
			"ne": query.NotEquals,
			"lt": query.Less,
			"le": query.LessOrEqual,
			"gt": query.Greater,
			"ge": query.GreaterOrEqual,
		}[d.Op](v)
	case "in", "not_in":
		var vs []ent.Value
		if vs, err = many(); err != nil {
			break
		}
		if d.Op == "in" {
			pred = query.InSet(vs...)
		} else {
			pred = query.NotInSet(vs...)
		}
	case "range":
		var vs []ent.Value
		if vs, err = many(); err != nil {
			break
		}
		if len(vs) != 2 {
			err = fmt.Errorf("range needs two values, got %d", len(vs))
			break
		}
		pred = query.InRange(vs[0], vs[1])
	default:
		err = fmt.Errorf("unknown op %q", d.Op)
	}
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", d.Name, err)
	}
	return query.ByField(d.Name, pred).Compile()
}

func (d EdgeCondDoc) compile() (query.Condition, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("edge condition needs a name")
	}
	inner, err := d.Where.Compile()
	if err != nil {
		return nil, fmt.Errorf("edge %s: %w", d.Name, err)
	}

	var ec query.EdgeCondition
	switch d.Quant {
	case "", "any":
		ec = query.EdgeAny(inner)
	case "all":
		ec = query.EdgeAll(inner)
	case "exactly":
		if d.N < 0 {
			return nil, fmt.Errorf("edge %s: negative count %d", d.Name, d.N)
		}
		ec = query.EdgeExactly(d.N, inner)
	default:
		return nil, fmt.Errorf("edge %s: unknown quantifier %q", d.Name, d.Quant)
	}
	return query.Edge{Name: d.Name, Cond: ec}, nil
}

func (d TimeDoc) condition() (query.TimeCondition, error) {
	op, err := query.ParseTimeOp(d.Op)
	if err != nil {
		return query.TimeCondition{}, err
	}
	return query.TimeCondition{Op: op, A: d.At, B: d.Until}, nil
}
