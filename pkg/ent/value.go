// ABOUTME: Tagged value union stored in entity fields
// ABOUTME: Per-kind equality, ordering and type compatibility

package ent

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the variant held by a Value
type Kind uint8

const (
	KindUnit Kind = iota
	KindBool
	KindChar
	KindInt
	KindUint
	KindFloat
	KindText
	KindList
	KindMap
	KindOptional
)

var kindNames = map[Kind]string{
	KindUnit:     "unit",
	KindBool:     "bool",
	KindChar:     "char",
	KindInt:      "int",
	KindUint:     "uint",
	KindFloat:    "float",
	KindText:     "text",
	KindList:     "list",
	KindMap:      "map",
	KindOptional: "optional",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a kind name back to its Kind
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown value kind %q", s)
}

// IsNumber reports whether the kind is one of the numeric kinds
func (k Kind) IsNumber() bool {
	return k == KindInt || k == KindUint || k == KindFloat
}

// Value is a tagged union over primitives, text and containers.
// The zero Value is Unit.
type Value struct {
	kind Kind
	b    bool
	r    rune
	i    int64
	u    uint64
	f    float64
	s    string
	list []Value
	m    map[string]Value
	opt  *Value
}

func Unit() Value { return Value{kind: KindUnit} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Char(r rune) Value { return Value{kind: KindChar, r: r} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Uint(u uint64) Value { return Value{kind: KindUint, u: u} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Text(s string) Value { return Value{kind: KindText, s: s} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }
func None() Value { return Value{kind: KindOptional} }
func Some(v Value) Value { return Value{kind: KindOptional, opt: &v} }

// Map builds a map value; the given map is copied
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// Kind returns the variant of the value
func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) AsChar() (rune, bool) { return v.r, v.kind == KindChar }
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }
func (v Value) AsUint() (uint64, bool) { return v.u, v.kind == KindUint }
func (v Value) AsFloat() (float64, bool) {
	return v.f, v.kind == KindFloat
}
func (v Value) AsText() (string, bool) { return v.s, v.kind == KindText }

// AsList returns a copy of the list items
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out, true
}

// AsMap returns a copy of the map entries
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	out := make(map[string]Value, len(v.m))
	for k, e := range v.m {
		out[k] = e
	}
	return out, true
}

// AsOptional returns the inner value of a present optional.
// The second result is false for None and for non-optional values.
func (v Value) AsOptional() (Value, bool) {
	if v.kind != KindOptional || v.opt == nil {
		return Value{}, false
	}
	return *v.opt, true
}

// IsNone reports whether the value is an empty optional
func (v Value) IsNone() bool {
	return v.kind == KindOptional && v.opt == nil
}

// Clone returns a deep copy of the value
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return Value{kind: KindList, list: items}
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			m[k] = item.Clone()
		}
		return Value{kind: KindMap, m: m}
	case KindOptional:
		if v.opt == nil {
			return None()
		}
		return Some(v.opt.Clone())
	default:
		return v
	}
}

// Equal reports whether two values hold the same data.
// Numeric kinds compare by numeric value; other kinds must match exactly.
func (v Value) Equal(other Value) bool {
	if v.kind.IsNumber() && other.kind.IsNumber() {
		c, ok := compareNumbers(v, other)
		return ok && c == 0
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindUnit:
		return true
	case KindBool:
		return v.b == other.b
	case KindChar:
		return v.r == other.r
	case KindText:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, a := range v.m {
			b, ok := other.m[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	case KindOptional:
		if v.opt == nil || other.opt == nil {
			return v.opt == nil && other.opt == nil
		}
		return v.opt.Equal(*other.opt)
	}
	return false
}

// Compare orders two values of the same kind.
// ok is false when the values have no defined ordering.
func (v Value) Compare(other Value) (c int, ok bool) {
	if v.kind.IsNumber() && other.kind.IsNumber() {
		return compareNumbers(v, other)
	}
	if v.kind != other.kind {
		return 0, false
	}
	switch v.kind {
	case KindUnit:
		return 0, true
	case KindBool:
		switch {
		case v.b == other.b:
			return 0, true
		case !v.b:
			return -1, true
		default:
			return 1, true
		}
	case KindChar:
		return cmpOrdered(v.r, other.r), true
	case KindText:
		return strings.Compare(v.s, other.s), true
	case KindList:
		for i := 0; i < len(v.list) && i < len(other.list); i++ {
			c, ok := v.list[i].Compare(other.list[i])
			if !ok {
				return 0, false
			}
			if c != 0 {
				return c, true
			}
		}
		return cmpOrdered(len(v.list), len(other.list)), true
	case KindOptional:
		if v.opt == nil && other.opt == nil {
			return 0, true
		}
		if v.opt == nil || other.opt == nil {
			return 0, false
		}
		return v.opt.Compare(*other.opt)
	}
	// maps are unordered
	return 0, false
}

func compareNumbers(a, b Value) (int, bool) {
	switch {
	case a.kind == KindInt && b.kind == KindInt:
		return cmpOrdered(a.i, b.i), true
	case a.kind == KindUint && b.kind == KindUint:
		return cmpOrdered(a.u, b.u), true
	case a.kind == KindInt && b.kind == KindUint:
		if a.i < 0 {
			return -1, true
		}
		return cmpOrdered(uint64(a.i), b.u), true
	case a.kind == KindUint && b.kind == KindInt:
		if b.i < 0 {
			return 1, true
		}
		return cmpOrdered(a.u, uint64(b.i)), true
	}
	fa, fb := a.float(), b.float()
	if fa != fa || fb != fb {
		// NaN has no ordering
		return 0, false
	}
	return cmpOrdered(fa, fb), true
}

func (v Value) float() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.i)
	case KindUint:
		return float64(v.u)
	default:
		return v.f
	}
}

func cmpOrdered[T int | int64 | uint64 | float64 | rune](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindUnit:
		return "()"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindChar:
		return fmt.Sprintf("%q", v.r)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindUint:
		return fmt.Sprintf("%du", v.u)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindText:
		return fmt.Sprintf("%q", v.s)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.m[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindOptional:
		if v.opt == nil {
			return "None"
		}
		return "Some(" + v.opt.String() + ")"
	}
	return "?"
}

// ValueType describes the shape of a value. Elem is set for list, map and
// optional types; nil means the element type is unknown (empty container
// or None) and is compatible with anything.
type ValueType struct {
	Kind Kind
	Elem *ValueType
}

// TypeOf returns a primitive or container type with no element type
func TypeOf(k Kind) ValueType { return ValueType{Kind: k} }

// ListOf returns the type of a list holding elem
func ListOf(elem ValueType) ValueType { return ValueType{Kind: KindList, Elem: &elem} }

// MapOf returns the type of a map holding elem
func MapOf(elem ValueType) ValueType { return ValueType{Kind: KindMap, Elem: &elem} }

// OptionalOf returns the type of an optional holding elem
func OptionalOf(elem ValueType) ValueType { return ValueType{Kind: KindOptional, Elem: &elem} }

// Type returns the type of the value, inferring element types from the
// first contained item
func (v Value) Type() ValueType {
	switch v.kind {
	case KindList:
		if len(v.list) == 0 {
			return ValueType{Kind: KindList}
		}
		return ListOf(v.list[0].Type())
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		if len(keys) == 0 {
			return ValueType{Kind: KindMap}
		}
		sort.Strings(keys)
		return MapOf(v.m[keys[0]].Type())
	case KindOptional:
		if v.opt == nil {
			return ValueType{Kind: KindOptional}
		}
		return OptionalOf(v.opt.Type())
	default:
		return ValueType{Kind: v.kind}
	}
}

// Compatible reports whether values of the two types can be compared.
// Numeric kinds are mutually compatible.
func (t ValueType) Compatible(other ValueType) bool {
	if t.Kind.IsNumber() && other.Kind.IsNumber() {
		return true
	}
	if t.Kind != other.Kind {
		return false
	}
	if t.Elem == nil || other.Elem == nil {
		return true
	}
	return t.Elem.Compatible(*other.Elem)
}

func (t ValueType) String() string {
	if t.Elem == nil {
		return t.Kind.String()
	}
	return t.Kind.String() + "<" + t.Elem.String() + ">"
}
