package api

import (
	"context"
	"time"

	"github.com/krisalay/estate-cache/types"
)

/*
Cache is the public contract of the memoizing cache. Sharding, eviction,
expiration strategies, second-level stores and write mirroring all sit
behind it.
*/
type Cache interface {

	/*
		Get returns the value stored under key.

		- present and not expired: (value, true)
		- absent: (nil, false)
		- expired: (nil, false) and the entry is evicted on the spot

		Get never fetches.
	*/
	Get(key string) (any, bool)

	/*
		Set stores value under key, overwriting any previous entry.
		A ttl > 0 expires the entry at now+ttl; ttl <= 0 keeps it until it is
		removed or cleared (unless a default-lifetime expiration strategy is
		configured).
	*/
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	/*
		GetOrFetch returns the cached value on a hit. On a miss it runs fetch,
		stores the result with ttl and returns it.

		- Concurrent callers for the same cold key share one fetch.
		- A failing fetch stores nothing; every waiting caller gets the error.
		- A caller whose ctx ends stops waiting; the shared fetch carries on for
		  the others.
	*/
	GetOrFetch(ctx context.Context, key string, fetch types.FetchFunc, ttl time.Duration) (any, error)

	// Remove evicts key. Removing a missing key is a no-op.
	Remove(key string)

	// RemovePrefix evicts every key starting with prefix and returns how many went.
	RemovePrefix(prefix string) int

	// Clear evicts everything.
	Clear()

	// Len counts stored entries, including expired ones not yet read.
	Len() int

	/*
		Expire resets the lifetime of an existing, unexpired key to ttl
		(ttl <= 0 removes the expiry). It returns false when the key is absent.
	*/
	Expire(key string, ttl time.Duration) bool

	/*
		TTL returns the remaining lifetime of key, Redis style:
		> 0 remaining, -1 no expiry, -2 absent or expired.
	*/
	TTL(key string) time.Duration

	// Close flushes the write policy and drops the in-memory entries without
	// mirroring the drop. Set and GetOrFetch fail with ErrClosed afterwards.
	Close()
}
