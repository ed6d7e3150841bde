// ABOUTME: In-memory entity graph store
// ABOUTME: Primary map, type index and allocator behind independent locks

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nainya/entgraph/internal/logger"
	"github.com/nainya/entgraph/internal/metrics"
	"github.com/nainya/entgraph/pkg/alloc"
	"github.com/nainya/entgraph/pkg/ent"
	"github.com/nainya/entgraph/pkg/query"
)

// Memory stores entities in process memory. The primary map, the type
// index and the allocator each have their own lock. Reads take one lock at
// a time; the commit step of Insert and the final step of a removal hold
// mu and then take the index or allocator lock. Compound operations are
// not atomic as a whole.
type Memory struct {
	mu   sync.RWMutex
	ents map[ent.ID]*ent.Entity

	types *typeIndex

	allocMu sync.Mutex
	alloc   *alloc.Allocator

	registry *ent.Registry
	engine   *query.Engine
	log      *logger.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

var _ query.Source = (*Memory)(nil)

// NewMemory creates an empty store
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		ents:   make(map[ent.ID]*ent.Entity),
		types:  newTypeIndex(),
		alloc:  alloc.New(),
		log:    logger.Nop(),
		tracer: defaultTracer(),
	}
	for _, opt := range opts {
		opt(m)
	}

	var engineOpts []query.EngineOption
	if m.metrics != nil {
		engineOpts = append(engineOpts, query.WithObserver(m.metrics.RecordCondition))
	}
	m.engine = query.NewEngine(m, engineOpts...)
	return m
}

// Get returns a copy of the entity with id, or nil when it is not stored
func (m *Memory) Get(ctx context.Context, id ent.ID) (*ent.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.ents[id]
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

// GetAll returns copies of the stored entities among ids in the order
// given, skipping ids that are not stored
func (m *Memory) GetAll(ctx context.Context, ids []ent.ID) ([]*ent.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ent.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.ents[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// FindAll evaluates the query's condition with no pipeline established and
// returns copies of the matches ordered by id, paginated by the query
func (m *Memory) FindAll(ctx context.Context, q query.Query) (result []*ent.Entity, err error) {
	start := time.Now()
	ctx, span := m.startSpan(ctx, "Store.FindAll", attrCondition.String(q.Condition().String()))
	defer func() {
		span.SetAttributes(attrCount.Int(len(result)))
		endSpan(span, err)
		m.record("find_all", start, len(result), err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := m.engine.Evaluate(q.Condition(), nil)
	if err != nil {
		return nil, fmt.Errorf("find all: %w", err)
	}

	found, err := m.GetAll(ctx, ids.Sorted())
	if err != nil {
		return nil, err
	}
	result = query.Paginate(found, q.Limit(), q.Offset())
	if m.metrics != nil {
		m.metrics.QueryResultsTotal.Add(float64(len(result)))
	}
	return result, nil
}

// Insert stores e under its id, allocating one when e carries the
// ephemeral id. The id is written back onto e and returned.
func (m *Memory) Insert(ctx context.Context, e *ent.Entity) (id ent.ID, err error) {
	start := time.Now()
	ctx, span := m.startSpan(ctx, "Store.Insert", attrEntType.String(e.Type()))
	defer func() {
		span.SetAttributes(idAttr(id))
		endSpan(span, err)
		m.record("insert", start, 1, err)
	}()

	if err := ctx.Err(); err != nil {
		return ent.EphemeralID, err
	}

	// a rejected entity leaves the allocator untouched
	if m.registry != nil {
		if _, err := m.registry.Conform(e); err != nil {
			return ent.EphemeralID, fmt.Errorf("insert %s: %w", e, err)
		}
	}

	id = e.ID()
	explicit := id != ent.EphemeralID
	if !explicit {
		m.allocMu.Lock()
		next, ok := m.alloc.Next()
		m.allocMu.Unlock()
		if !ok {
			return ent.EphemeralID, ErrEntCapacityReached
		}
		id = next
	}

	e.SetID(id)
	e.MarkUpdated()
	stored := e.Clone()

	// The external id mark, index update and map write commit together
	// under mu; remove frees an id under the same lock only if it is absent.
	m.mu.Lock()
	if explicit {
		m.allocMu.Lock()
		m.alloc.MarkExternalID(id)
		m.allocMu.Unlock()
	}
	if prev, ok := m.ents[id]; ok && prev.Type() != stored.Type() {
		m.types.remove(prev.Type(), id)
	}
	m.types.add(stored.Type(), id)
	m.ents[id] = stored
	m.mu.Unlock()

	m.updateStats()
	return id, nil
}

// Remove deletes the entity with id, cascades along its edges and frees
// the id for reuse. Cascade failures are reported after the removal has
// completed; the result is true in that case.
func (m *Memory) Remove(ctx context.Context, id ent.ID) (removed bool, err error) {
	start := time.Now()
	c := newCascade()
	ctx, span := m.startSpan(ctx, "Store.Remove", idAttr(id), attrCascadeID.String(c.id))
	defer func() {
		span.SetAttributes(attrCount.Int(len(c.removed)))
		endSpan(span, err)
		m.record("remove", start, len(c.removed), err)
	}()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	removed, err = m.remove(ctx, c, id)
	m.updateStats()
	return removed, err
}

// remove deletes one entity as part of cascade c
func (m *Memory) remove(ctx context.Context, c *cascade, id ent.ID) (bool, error) {
	c.begin(id)

	m.mu.Lock()
	e, ok := m.ents[id]
	if ok {
		delete(m.ents, id)
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	c.removed = append(c.removed, id)

	err := m.cascadeEdges(ctx, c, e)

	m.mu.Lock()
	if cur, live := m.ents[id]; live {
		// reinserted while the cascade ran; the id stays allocated
		if cur.Type() != e.Type() {
			m.types.remove(e.Type(), id)
		}
	} else {
		m.types.remove(e.Type(), id)
		m.allocMu.Lock()
		m.alloc.Extend(id)
		m.allocMu.Unlock()
	}
	m.mu.Unlock()

	return true, err
}

// UpdateField replaces the value of a field on a stored entity and returns
// the previous value
func (m *Memory) UpdateField(ctx context.Context, id ent.ID, name string, v ent.Value) (old ent.Value, err error) {
	start := time.Now()
	defer func() { m.record("update_field", start, 1, err) }()

	if err := ctx.Err(); err != nil {
		return ent.Value{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ents[id]
	if !ok {
		return ent.Value{}, fmt.Errorf("%w: %d", ErrMissingEnt, id)
	}
	return e.UpdateField(name, v)
}

// UpdateEdge replaces the value of an edge on a stored entity and returns
// the previous value
func (m *Memory) UpdateEdge(ctx context.Context, id ent.ID, name string, v ent.EdgeValue) (old ent.EdgeValue, err error) {
	start := time.Now()
	defer func() { m.record("update_edge", start, 1, err) }()

	if err := ctx.Err(); err != nil {
		return ent.EdgeValue{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ents[id]
	if !ok {
		return ent.EdgeValue{}, fmt.Errorf("%w: %d", ErrMissingEnt, id)
	}
	return e.UpdateEdge(name, v)
}

// AddEdgeIDs adds targets to an edge of a stored entity
func (m *Memory) AddEdgeIDs(ctx context.Context, id ent.ID, name string, ids ...ent.ID) (err error) {
	start := time.Now()
	defer func() { m.record("add_edge_ids", start, len(ids), err) }()
	return m.mutate(ctx, id, func(e *ent.Entity) error { return e.AddEdgeIDs(name, ids...) })
}

// RemoveEdgeIDs removes targets from an edge of a stored entity
func (m *Memory) RemoveEdgeIDs(ctx context.Context, id ent.ID, name string, ids ...ent.ID) (err error) {
	start := time.Now()
	defer func() { m.record("remove_edge_ids", start, len(ids), err) }()
	return m.mutate(ctx, id, func(e *ent.Entity) error { return e.RemoveEdgeIDs(name, ids...) })
}

func (m *Memory) mutate(ctx context.Context, id ent.ID, fn func(e *ent.Entity) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ents[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrMissingEnt, id)
	}
	return fn(e)
}

// LoadEdge returns the stored targets of the named edge on the entity with
// id. Targets that are no longer stored are skipped.
func LoadEdge(ctx context.Context, db Database, id ent.ID, name string) ([]*ent.Entity, error) {
	e, err := db.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %d", ErrMissingEnt, id)
	}
	edge, ok := e.Edge(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s", ErrMissingEdge, name, e)
	}
	return db.GetAll(ctx, edge.Value.IDs())
}

// IDs returns every stored id in ascending order
func (m *Memory) IDs() []ent.ID {
	m.mu.RLock()
	out := make([]ent.ID, 0, len(m.ents))
	for id := range m.ents {
		out = append(out, id)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TypeIDs returns the ids indexed under typ in ascending order
func (m *Memory) TypeIDs(typ string) []ent.ID {
	return m.types.lookup(typ)
}

// Types returns the indexed type names
func (m *Memory) Types() []string {
	return m.types.types()
}

// Contains reports whether id is stored
func (m *Memory) Contains(id ent.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ents[id]
	return ok
}

// View calls fn with the stored entity under a read lock
func (m *Memory) View(id ent.ID, fn func(e *ent.Entity)) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.ents[id]
	if !ok {
		return false
	}
	fn(e)
	return true
}

// Len returns the number of stored entities
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ents)
}

// Freed returns the ids waiting for reuse, oldest first
func (m *Memory) Freed() []ent.ID {
	m.allocMu.Lock()
	defer m.allocMu.Unlock()
	return m.alloc.Freed()
}

// SetNextID moves the allocator's counter
func (m *Memory) SetNextID(id ent.ID) {
	m.allocMu.Lock()
	defer m.allocMu.Unlock()
	m.alloc.SetNextID(id)
}

// Verify checks that the type index and the primary map agree: every
// stored entity is indexed under its type and nothing else is indexed.
func (m *Memory) Verify() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.types.mu.RLock()
	defer m.types.mu.RUnlock()

	var errs []error
	indexed := 0
	for typ, set := range m.types.ids {
		for id := range set {
			indexed++
			e, ok := m.ents[id]
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("type %q indexes missing id %d", typ, id))
			case e.Type() != typ:
				errs = append(errs, fmt.Errorf("type %q indexes %s", typ, e))
			}
		}
	}
	if indexed != len(m.ents) {
		errs = append(errs, fmt.Errorf("type index holds %d ids, store holds %d", indexed, len(m.ents)))
	}
	return errors.Join(errs...)
}

func (m *Memory) record(op string, start time.Time, count int, err error) {
	duration := time.Since(start)
	if m.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		m.metrics.RecordStoreOperation(op, status, duration)
	}
	m.log.LogStoreOperation(op, duration, count, err)
}

func (m *Memory) updateStats() {
	if m.metrics == nil {
		return
	}
	m.metrics.UpdateStoreStats(m.Len(), len(m.Freed()))
}
