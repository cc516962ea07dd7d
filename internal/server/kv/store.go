// Package kv defines the flat key-value backend the collection store runs
// on, together with Redis, Postgres and in-memory implementations. The
// backend only guarantees atomic whole-value get/set per key; there are no
// cross-key transactions and no compare-and-swap.
package kv

import "context"

// Store is the injected backend collaborator. Values are opaque JSON blobs.
//
// Get returns (nil, nil) when the key is absent. Transport failures wrap
// common.ErrBackendUnavailable so callers can match them with errors.Is.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
