// ABOUTME: Database contract shared by entity stores
// ABOUTME: Handle carries an attached database explicitly instead of a global

package store

import (
	"context"
	"sync"

	"github.com/nainya/entgraph/pkg/ent"
	"github.com/nainya/entgraph/pkg/query"
)

// Database is the contract every entity store fulfils
type Database interface {
	// Get returns a copy of the entity with id, or nil when it is not stored
	Get(ctx context.Context, id ent.ID) (*ent.Entity, error)

	// GetAll returns copies of the stored entities among ids, skipping misses
	GetAll(ctx context.Context, ids []ent.ID) ([]*ent.Entity, error)

	// FindAll returns copies of the entities matching q, ordered by id
	FindAll(ctx context.Context, q query.Query) ([]*ent.Entity, error)

	// Insert stores e, allocating an id when e carries the ephemeral id.
	// An entity with the same id is replaced.
	Insert(ctx context.Context, e *ent.Entity) (ent.ID, error)

	// Remove deletes the entity with id and cascades along its edges. It
	// reports false when nothing was stored under id. A true result may
	// come with an error describing edges the cascade could not detach.
	Remove(ctx context.Context, id ent.ID) (bool, error)
}

var (
	_ Database = (*Memory)(nil)
	_ Database = (*Handle)(nil)
)

// Handle holds the database an application is working against. It is safe
// for concurrent use.
type Handle struct {
	mu sync.RWMutex
	db Database
}

// NewHandle creates a handle, attached to db when it is not nil
func NewHandle(db Database) *Handle {
	return &Handle{db: db}
}

// Attach replaces the attached database
func (h *Handle) Attach(db Database) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.db = db
}

// Detach drops the attached database and returns it
func (h *Handle) Detach() Database {
	h.mu.Lock()
	defer h.mu.Unlock()
	db := h.db
	h.db = nil
	return db
}

// Database returns the attached database
func (h *Handle) Database() (Database, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, ErrDisconnected
	}
	return h.db, nil
}

func (h *Handle) Get(ctx context.Context, id ent.ID) (*ent.Entity, error) {
	db, err := h.Database()
	if err != nil {
		return nil, err
	}
	return db.Get(ctx, id)
}

func (h *Handle) GetAll(ctx context.Context, ids []ent.ID) ([]*ent.Entity, error) {
	db, err := h.Database()
	if err != nil {
		return nil, err
	}
	return db.GetAll(ctx, ids)
}

func (h *Handle) FindAll(ctx context.Context, q query.Query) ([]*ent.Entity, error) {
	db, err := h.Database()
	if err != nil {
		return nil, err
	}
	return db.FindAll(ctx, q)
}

func (h *Handle) Insert(ctx context.Context, e *ent.Entity) (ent.ID, error) {
	db, err := h.Database()
	if err != nil {
		return ent.EphemeralID, err
	}
	return db.Insert(ctx, e)
}

func (h *Handle) Remove(ctx context.Context, id ent.ID) (bool, error) {
	db, err := h.Database()
	if err != nil {
		return false, err
	}
	return db.Remove(ctx, id)
}
