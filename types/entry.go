package types

import "time"

// CacheEntry is one memoized value. Timestamps are mutated in place by the
// expiration strategies; those races are tolerated.
type CacheEntry struct {
	Key            string
	Value          any
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpireAt       time.Time // zero => no TTL

	// TTL is the lifetime requested by the writer. Sliding strategies reuse it.
	TTL time.Duration

	// Fetch is remembered for entries produced by GetOrFetch so a refresh
	// hook can re-run it. Nil for plain Set.
	Fetch FetchFunc
}

// Expired reports whether the entry has an expiry that is not after now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpireAt.IsZero() && !now.Before(e.ExpireAt)
}

// Remaining returns the time left before expiry, or -1 when the entry never expires.
func (e *CacheEntry) Remaining(now time.Time) time.Duration {
	if e.ExpireAt.IsZero() {
		return -1
	}
	return e.ExpireAt.Sub(now)
}
