package model

import "errors"

// Sentinel errors. Callers match them with errors.Is; the model wraps them
// with the entity type, field or identifier involved.
var (
	// ErrIdentifierRequired is returned when an operation needs a subject
	// URI and the entity has none. No query is issued.
	ErrIdentifierRequired = errors.New("identifier required")

	// ErrNotImplemented is returned when a new identifier is needed and the
	// entity type declares no generator.
	ErrNotImplemented = errors.New("identifier generation not implemented")

	// ErrStoreWriteFailed wraps executor failures during save, delete and link.
	ErrStoreWriteFailed = errors.New("store write failed")

	ErrUnknownType      = errors.New("unknown entity type")
	ErrUnknownField     = errors.New("unknown field")
	ErrDuplicateMapping = errors.New("duplicate mapping")
	ErrInvalidMapping   = errors.New("invalid mapping")
	ErrRegistrySealed   = errors.New("registry sealed")
)
