package expiration

import (
	"time"

	"github.com/krisalay/estate-cache/types"
)

// ExpireAfterWrite gives every entry written without a ttl a lifetime of TTL.
// Reads never extend it.
type ExpireAfterWrite struct {
	TTL time.Duration
}

func (e *ExpireAfterWrite) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.Expired(now)
}

func (e *ExpireAfterWrite) OnAccess(ent *types.CacheEntry, now time.Time) {
	ent.LastAccessedAt = now
}

func (e *ExpireAfterWrite) OnWrite(ent *types.CacheEntry, now time.Time) {
	if ent.ExpireAt.IsZero() && e.TTL > 0 {
		ent.TTL = e.TTL
		ent.ExpireAt = now.Add(e.TTL)
	}
}
