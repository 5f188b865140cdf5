// Package refresh decides when a cache read should also kick off a
// background re-fetch, so hot keys are renewed before they expire instead of
// stalling a caller on a cold miss.

package refresh

import (
	"time"

	"github.com/krisalay/estate-cache/types"
)

/*
Hook is consulted after every successful read. It only decides; the cache
runs the refresh itself, off the read path, sharing the in-flight slot with
GetOrFetch callers. OnRead must be fast and must not block.
*/
type Hook interface {
	OnRead(key string, ent *types.CacheEntry, now time.Time) bool
}

// Ahead refreshes entries produced by GetOrFetch once their remaining
// lifetime drops to Window or below.
type Ahead struct {
	Window time.Duration
}

func (a Ahead) OnRead(_ string, ent *types.CacheEntry, now time.Time) bool {
	if a.Window <= 0 || ent.Fetch == nil || ent.ExpireAt.IsZero() {
		return false
	}
	left := ent.Remaining(now)
	return left > 0 && left <= a.Window
}
