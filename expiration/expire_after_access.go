package expiration

import (
	"time"

	"github.com/krisalay/estate-cache/types"
)

/*
ExpireAfterAccess implements "sliding TTL". Every read pushes the expiry
forward, so an entry that keeps getting used stays alive.

The window is the entry's own TTL when it has one, otherwise the strategy
TTL. With both zero the entry never expires.
*/
type ExpireAfterAccess struct {
	TTL time.Duration
}

func (e *ExpireAfterAccess) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.Expired(now)
}

func (e *ExpireAfterAccess) OnAccess(ent *types.CacheEntry, now time.Time) {
	ent.LastAccessedAt = now
	if w := e.window(ent); w > 0 {
		ent.ExpireAt = now.Add(w)
	}
}

// OnWrite leaves an explicit ExpireAt alone; the caller asked for that TTL.
func (e *ExpireAfterAccess) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.LastAccessedAt = now
	if ent.ExpireAt.IsZero() && e.TTL > 0 {
		ent.ExpireAt = now.Add(e.TTL)
	}
}

func (e *ExpireAfterAccess) window(ent *types.CacheEntry) time.Duration {
	if ent.TTL > 0 {
		return ent.TTL
	}
	return e.TTL
}
