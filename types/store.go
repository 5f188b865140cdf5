package types

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store that has nothing under the key.
var ErrNotFound = errors.New("types: key not found")

// FetchFunc produces the value for a cold key. It must be a side-effect-free
// read: the cache may share one call between several waiters.
type FetchFunc func(ctx context.Context) (any, error)

// Store is the contract between the cache and a second-level store
// (Redis in production, a map in tests).
type Store interface {

	/*
		Load is consulted by GetOrFetch before the fetch function runs.
		It returns ErrNotFound when the key is absent or expired.
	*/
	Load(ctx context.Context, key string) (any, error)

	/*
		Put is called by write policies to mirror a cache write.
		A ttl <= 0 means the key does not expire in the store either.
	*/
	Put(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete mirrors Remove. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix mirrors RemovePrefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear mirrors a full cache clear.
	Clear(ctx context.Context) error
}
