// ABOUTME: Conversion between Values and plain Go data
// ABOUTME: Used when decoding fixtures and printing query results

package ent

import (
	"fmt"
	"sort"
)

// FromAny converts decoded YAML or JSON data into a Value.
// nil becomes None; maps must have string keys.
func FromAny(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return None(), nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		return Uint(uint64(v)), nil
	case uint8:
		return Uint(uint64(v)), nil
	case uint16:
		return Uint(uint64(v)), nil
	case uint32:
		return Uint(uint64(v)), nil
	case uint64:
		return Uint(v), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case string:
		return Text(v), nil
	case []any:
		items := make([]Value, 0, len(v))
		for i, item := range v {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, iv)
		}
		return List(items...), nil
	case map[string]any:
		m := make(map[string]Value, len(v))
		for k, item := range v {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = iv
		}
		return Map(m), nil
	case map[any]any:
		m := make(map[string]Value, len(v))
		for k, item := range v {
			ks, ok := k.(string)
			if !ok {
				return Value{}, fmt.Errorf("%w: map key %v is not text", ErrWrongType, k)
			}
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", ks, err)
			}
			m[ks] = iv
		}
		return Map(m), nil
	}
	return Value{}, fmt.Errorf("%w: cannot convert %T", ErrWrongType, x)
}

// ToAny converts a Value into plain Go data suitable for encoding
func ToAny(v Value) any {
	switch v.kind {
	case KindUnit:
		return struct{}{}
	case KindBool:
		return v.b
	case KindChar:
		return string(v.r)
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = ToAny(item)
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = ToAny(item)
		}
		return out
	case KindOptional:
		if v.opt == nil {
			return nil
		}
		return ToAny(*v.opt)
	}
	return nil
}

// Document renders an entity as plain Go data
func Document(e *Entity) map[string]any {
	fields := make(map[string]any, len(e.fields))
	for name, f := range e.fields {
		fields[name] = ToAny(f.Value)
	}
	edges := make(map[string]any, len(e.edges))
	for name, ed := range e.edges {
		ids := ed.Value.IDs()
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out := make([]uint64, len(ids))
		for i, id := range ids {
			out[i] = uint64(id)
		}
		edges[name] = map[string]any{
			"kind":   ed.Value.Kind().String(),
			"ids":    out,
			"policy": ed.Policy.String(),
		}
	}
	return map[string]any{
		"id":           uint64(e.id),
		"type":         e.typ,
		"created":      e.created,
		"last_updated": e.lastUpdated,
		"fields":       fields,
		"edges":        edges,
	}
}
