// ABOUTME: Id allocator for entity stores
// ABOUTME: Monotonic counter plus a LIFO pool of freed ids for reuse

package alloc

import "github.com/nainya/entgraph/pkg/ent"

// Allocator hands out entity ids. Freed ids are reused most recently freed
// first, before the counter advances. An Allocator is not safe for
// concurrent use; stores guard it with their own lock.
type Allocator struct {
	next      ent.ID
	exhausted bool
	freed     []ent.ID
}

// New creates an allocator whose counter starts at 1
func New() *Allocator {
	return &Allocator{next: 1}
}

// Next returns an unused id. The second result is false once the freed
// pool is empty and the counter has handed out ent.MaxID.
func (a *Allocator) Next() (ent.ID, bool) {
	if n := len(a.freed); n > 0 {
		id := a.freed[n-1]
		a.freed = a.freed[:n-1]
		return id, true
	}

	if a.exhausted {
		return 0, false
	}

	id := a.next
	if id == ent.MaxID {
		a.exhausted = true
	} else {
		a.next++
	}
	return id, true
}

// HasNext reports whether Next would succeed
func (a *Allocator) HasNext() bool {
	return len(a.freed) > 0 || !a.exhausted
}

// NextID returns the counter value Next would hand out once the pool is
// drained. The second result is false when the counter is exhausted.
func (a *Allocator) NextID() (ent.ID, bool) {
	if a.exhausted {
		return 0, false
	}
	return a.next, true
}

// SetNextID moves the counter and clears the exhausted state
func (a *Allocator) SetNextID(id ent.ID) {
	a.next = id
	a.exhausted = false
}

// MarkExternalID records an id chosen by a caller. The counter moves past
// it when it is not already beyond, and the id is dropped from the freed
// pool so it is not handed out while live.
func (a *Allocator) MarkExternalID(id ent.ID) {
	if !a.exhausted && id >= a.next {
		if id == ent.MaxID {
			a.exhausted = true
		} else {
			a.next = id + 1
		}
	}

	for i := len(a.freed) - 1; i >= 0; i-- {
		if a.freed[i] == id {
			a.freed = append(a.freed[:i], a.freed[i+1:]...)
		}
	}
}

// Extend pushes freed ids onto the pool; the last one is reused first
func (a *Allocator) Extend(ids ...ent.ID) {
	a.freed = append(a.freed, ids...)
}

// Freed returns a copy of the freed pool, oldest first
func (a *Allocator) Freed() []ent.ID {
	out := make([]ent.ID, len(a.freed))
	copy(out, a.freed)
	return out
}
