// Package common defines the sentinel errors shared across the blogstore
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrUnknownCollection = errors.New("unknown collection")
	ErrShapeMismatch     = errors.New("stored value has unexpected shape")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")

	// Seed/bootstrap errors.
	ErrAlreadyInitialized = errors.New("already initialized")

	// ErrBackendUnavailable wraps key-value transport failures. The caller
	// may retry with backoff; the store itself never retries.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
