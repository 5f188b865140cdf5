// This file defines how cache entries expire over time.

package expiration

import (
	"time"

	"github.com/krisalay/estate-cache/types"
)

/*
Strategy is the interface that all expiration rules must follow. The cache
always honours an entry's explicit ExpireAt; a strategy decides how ExpireAt
moves on reads and writes.
*/
type Strategy interface {

	// IsExpired checks if the entry is expired at now.
	IsExpired(*types.CacheEntry, time.Time) bool

	// OnAccess is called whenever a cache entry is read successfully.
	OnAccess(*types.CacheEntry, time.Time)

	// OnWrite is called whenever a cache entry is written or updated.
	OnWrite(*types.CacheEntry, time.Time)
}

// Mode names a strategy for configuration.
type Mode string

const (
	// PerEntryMode uses only the ttl given to Set / GetOrFetch.
	PerEntryMode Mode = "entry"

	// AccessMode slides the expiry forward on every read.
	AccessMode Mode = "access"

	// WriteMode gives entries written without a ttl a default lifetime.
	WriteMode Mode = "write"
)

// New builds the strategy for mode. ttl is the default lifetime used by the
// access and write modes.
func New(mode Mode, ttl time.Duration) Strategy {
	switch mode {
	case AccessMode:
		return &ExpireAfterAccess{TTL: ttl}
	case WriteMode:
		return &ExpireAfterWrite{TTL: ttl}
	default:
		return PerEntry{}
	}
}

// PerEntry expires an entry exactly at now+ttl of its last write. Entries
// written with ttl <= 0 live until removed or cleared.
type PerEntry struct{}

func (PerEntry) IsExpired(ent *types.CacheEntry, now time.Time) bool { return ent.Expired(now) }
func (PerEntry) OnAccess(*types.CacheEntry, time.Time)               {}
func (PerEntry) OnWrite(*types.CacheEntry, time.Time)                {}
