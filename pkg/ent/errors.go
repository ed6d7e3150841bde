// Package ent defines entities, their field values and edges, and the
// schema descriptors that describe registered entity types.
package ent

import "errors"

var (
	// ErrMissingField indicates a field name not present on an entity
	ErrMissingField = errors.New("ent: missing field")

	// ErrMissingEdge indicates an edge name not present on an entity
	ErrMissingEdge = errors.New("ent: missing edge")

	// ErrWrongType indicates a value or edge shape that does not match what
	// is stored or declared
	ErrWrongType = errors.New("ent: wrong type")

	// ErrTooManyIDs indicates an edge mutation that would exceed the edge's
	// cardinality
	ErrTooManyIDs = errors.New("ent: too many ids for edge")

	// ErrInvalidatesEdge indicates a removal that would leave a One edge
	// without a target
	ErrInvalidatesEdge = errors.New("ent: removal invalidates edge")

	// ErrImmutableField indicates an update to a field marked immutable
	ErrImmutableField = errors.New("ent: field is immutable")

	// ErrUnknownType indicates a type name with no registered schema
	ErrUnknownType = errors.New("ent: unknown type")

	// ErrInvalidSchema indicates a schema that failed validation
	ErrInvalidSchema = errors.New("ent: invalid schema")
)
