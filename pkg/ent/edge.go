// ABOUTME: Edge values and deletion policies
// ABOUTME: Cardinality-checked add/remove for One, MaybeOne and Many edges

package ent

import (
	"fmt"
	"math"
	"sort"
)

// ID identifies an entity
type ID uint64

const (
	// EphemeralID marks an entity whose id has not been allocated yet
	EphemeralID ID = 0

	// MaxID is the largest id the allocator hands out
	MaxID ID = math.MaxUint64
)

// EdgeKind is the cardinality shape of an edge
type EdgeKind uint8

const (
	EdgeOne EdgeKind = iota
	EdgeMaybeOne
	EdgeMany
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeOne:
		return "one"
	case EdgeMaybeOne:
		return "maybe_one"
	case EdgeMany:
		return "many"
	default:
		return fmt.Sprintf("edge_kind(%d)", uint8(k))
	}
}

// ParseEdgeKind maps a shape name back to its EdgeKind
func ParseEdgeKind(s string) (EdgeKind, error) {
	switch s {
	case "one":
		return EdgeOne, nil
	case "maybe_one":
		return EdgeMaybeOne, nil
	case "many":
		return EdgeMany, nil
	}
	return 0, fmt.Errorf("unknown edge kind %q", s)
}

// maxIDs returns the number of targets an edge of this shape can hold,
// or -1 for unbounded
func (k EdgeKind) maxIDs() int {
	if k == EdgeMany {
		return -1
	}
	return 1
}

// EdgeDeletionPolicy decides what happens to an edge's targets when the
// entity owning the edge is removed
type EdgeDeletionPolicy uint8

const (
	// Nothing leaves targets untouched
	Nothing EdgeDeletionPolicy = iota

	// ShallowDelete removes the deleted id from every edge of each target
	ShallowDelete

	// DeepDelete removes each target as well
	DeepDelete
)

func (p EdgeDeletionPolicy) String() string {
	switch p {
	case Nothing:
		return "nothing"
	case ShallowDelete:
		return "shallow"
	case DeepDelete:
		return "deep"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParseDeletionPolicy maps a policy name back to its EdgeDeletionPolicy.
// The empty string is Nothing.
func ParseDeletionPolicy(s string) (EdgeDeletionPolicy, error) {
	switch s {
	case "", "nothing":
		return Nothing, nil
	case "shallow":
		return ShallowDelete, nil
	case "deep":
		return DeepDelete, nil
	}
	return 0, fmt.Errorf("unknown deletion policy %q", s)
}

// EdgeValue holds the target ids of an edge. Its shape is fixed when it is
// created.
type EdgeValue struct {
	kind EdgeKind
	ids  []ID
}

// One returns an edge with exactly one target
func One(id ID) EdgeValue {
	return EdgeValue{kind: EdgeOne, ids: []ID{id}}
}

// MaybeOne returns an edge with zero or one target. Passing no id yields
// an empty edge; extra ids are ignored.
func MaybeOne(id ...ID) EdgeValue {
	ev := EdgeValue{kind: EdgeMaybeOne}
	if len(id) > 0 {
		ev.ids = []ID{id[0]}
	}
	return ev
}

// Many returns an edge with any number of targets
func Many(ids ...ID) EdgeValue {
	ev := EdgeValue{kind: EdgeMany}
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ev.ids = append(ev.ids, id)
	}
	return ev
}

// Kind returns the shape of the edge
func (e EdgeValue) Kind() EdgeKind { return e.kind }

// IDs returns a copy of the target ids
func (e EdgeValue) IDs() []ID {
	out := make([]ID, len(e.ids))
	copy(out, e.ids)
	return out
}

// Len returns the number of targets
func (e EdgeValue) Len() int { return len(e.ids) }

// Contains reports whether id is a target of the edge
func (e EdgeValue) Contains(id ID) bool {
	for _, x := range e.ids {
		if x == id {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no memory with e
func (e EdgeValue) Clone() EdgeValue {
	return EdgeValue{kind: e.kind, ids: e.IDs()}
}

// AddIDs adds targets to the edge. Ids already targeted by a Many edge are
// skipped. Fails with ErrTooManyIDs if the result would not fit the shape.
func (e *EdgeValue) AddIDs(ids ...ID) error {
	uniq := make([]ID, 0, len(ids))
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if e.kind == EdgeMany && e.Contains(id) {
			continue
		}
		uniq = append(uniq, id)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	if len(uniq) == 0 {
		return nil
	}

	if limit := e.kind.maxIDs(); limit >= 0 && len(e.ids)+len(uniq) > limit {
		return fmt.Errorf("%w: %s edge cannot take %d more", ErrTooManyIDs, e.kind, len(uniq))
	}

	e.ids = append(e.IDs(), uniq...)
	return nil
}

// RemoveIDs removes targets from the edge. Removing the target of a One
// edge fails with ErrInvalidatesEdge and leaves the edge unchanged.
func (e *EdgeValue) RemoveIDs(ids ...ID) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	if e.kind == EdgeOne && len(e.ids) > 0 {
		if _, ok := drop[e.ids[0]]; ok {
			return fmt.Errorf("%w: one edge must keep its target %d", ErrInvalidatesEdge, e.ids[0])
		}
		return nil
	}

	kept := make([]ID, 0, len(e.ids))
	for _, id := range e.ids {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	e.ids = kept
	return nil
}

func (e EdgeValue) String() string {
	return fmt.Sprintf("%s%v", e.kind, e.ids)
}
