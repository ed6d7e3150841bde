// ABOUTME: Secondary index from entity type to ids
// ABOUTME: Guarded by its own lock, independent of the primary map

package store

import (
	"sort"
	"sync"

	"github.com/nainya/entgraph/pkg/ent"
)

type typeIndex struct {
	mu  sync.RWMutex
	ids map[string]map[ent.ID]struct{}
}

func newTypeIndex() *typeIndex {
	return &typeIndex{ids: make(map[string]map[ent.ID]struct{})}
}

func (t *typeIndex) add(typ string, id ent.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.ids[typ]
	if !ok {
		set = make(map[ent.ID]struct{})
		t.ids[typ] = set
	}
	set[id] = struct{}{}
}

func (t *typeIndex) remove(typ string, id ent.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.ids[typ]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(t.ids, typ)
	}
}

// lookup returns the ids of a type in ascending order
func (t *typeIndex) lookup(typ string) []ent.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := t.ids[typ]
	out := make([]ent.ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t *typeIndex) types() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.ids))
	for typ := range t.ids {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}
