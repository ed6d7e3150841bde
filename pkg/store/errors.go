// Package store implements entity graph stores: a primary id map, a type
// index, id allocation, condition queries and edge-driven removal cascades.
package store

import (
	"errors"

	"github.com/nainya/entgraph/pkg/ent"
)

var (
	// ErrConnection indicates a backend that could not be reached
	ErrConnection = errors.New("store: connection failed")

	// ErrMissingEnt indicates an id with no stored entity
	ErrMissingEnt = errors.New("store: missing ent")

	// ErrCorruptedEnt indicates stored data that could not be decoded
	ErrCorruptedEnt = errors.New("store: corrupted ent")

	// ErrEntCapacityReached indicates the allocator has no ids left
	ErrEntCapacityReached = errors.New("store: ent capacity reached")

	// ErrDisconnected indicates a handle with no database attached
	ErrDisconnected = errors.New("store: database disconnected")

	// ErrBrokenEdge indicates a cascade that could not detach a removed id
	// from an edge that requires a target
	ErrBrokenEdge = errors.New("store: broken edge")
)

// Entity-level errors surfaced by store operations
var (
	ErrMissingField    = ent.ErrMissingField
	ErrMissingEdge     = ent.ErrMissingEdge
	ErrWrongType       = ent.ErrWrongType
	ErrImmutableField  = ent.ErrImmutableField
	ErrTooManyIDs      = ent.ErrTooManyIDs
	ErrInvalidatesEdge = ent.ErrInvalidatesEdge
	ErrUnknownType     = ent.ErrUnknownType
)
