// ABOUTME: Removal cascade driven by edge deletion policies
// ABOUTME: Tracks in-flight removals so cyclic graphs terminate

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nainya/entgraph/pkg/ent"
)

// cascade is the state of one top-level removal
type cascade struct {
	id       string
	removing map[ent.ID]struct{}
	removed  []ent.ID
}

func newCascade() *cascade {
	return &cascade{
		id:       uuid.NewString(),
		removing: make(map[ent.ID]struct{}),
	}
}

func (c *cascade) begin(id ent.ID) {
	c.removing[id] = struct{}{}
}

func (c *cascade) inFlight(id ent.ID) bool {
	_, ok := c.removing[id]
	return ok
}

// cascadeEdges applies the deletion policy of each edge of e, which has
// already left the primary map. Failures are collected and the cascade
// carries on.
func (m *Memory) cascadeEdges(ctx context.Context, c *cascade, e *ent.Entity) error {
	var errs []error
	for _, edge := range e.Edges() {
		if edge.Policy == ent.Nothing {
			continue
		}
		for _, target := range edge.Value.IDs() {
			if c.inFlight(target) {
				continue
			}

			var err error
			switch edge.Policy {
			case ent.ShallowDelete:
				err = m.detach(target, e.ID())
			case ent.DeepDelete:
				_, err = m.remove(ctx, c, target)
			}

			// nested deep removals count their own broken edges
			broken := edge.Policy == ent.ShallowDelete && errors.Is(err, ErrBrokenEdge)
			if m.metrics != nil {
				m.metrics.RecordCascade(edge.Policy.String(), broken)
			}
			m.log.LogCascade(c.id, uint64(e.ID()), uint64(target), edge.Name, edge.Policy.String(), err)
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// detach removes id from every edge of the stored entity target
func (m *Memory) detach(target, id ent.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.ents[target]
	if !ok {
		return nil
	}
	if _, err := t.DetachID(id); err != nil {
		return fmt.Errorf("%w: detaching %d from %s: %w", ErrBrokenEdge, id, t, err)
	}
	return nil
}
