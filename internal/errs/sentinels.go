// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/engine/lifecycle layers.
var (
	// ErrNotFound indicates a mutation targets an entity that is not cached.
	ErrNotFound = errors.New("not found")

	// ErrMalformed indicates an inbound entity failed required-field validation.
	ErrMalformed = errors.New("malformed entity")

	// ErrInvalidArgument indicates a caller supplied an unusable argument (empty id, empty key).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreClosed indicates the identity store was closed.
	ErrStoreClosed = errors.New("store closed")

	// ErrStoreUnavailable indicates the identity store is not open.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreCorrupted indicates the store hit an invariant violation and refuses further work.
	ErrStoreCorrupted = errors.New("store corrupted")

	// ErrConcurrentMutation indicates a write escaped the single-writer path.
	ErrConcurrentMutation = errors.New("concurrent mutation")

	// ErrBadSecret indicates the at-rest key could not be unwrapped with the supplied secret.
	ErrBadSecret = errors.New("bad secret")

	// ErrModeConflict indicates an identity is already open in a different store mode.
	ErrModeConflict = errors.New("mode conflict")
)
