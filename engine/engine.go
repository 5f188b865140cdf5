package engine

import (
	"context"
	"time"

	"github.com/krisalay/estate-cache/expiration"
	"github.com/krisalay/estate-cache/refresh"
	"github.com/krisalay/estate-cache/types"
	"github.com/krisalay/estate-cache/writepolicy"
)

/*
CacheEngine is the policy layer of the cache. It decides when data is
expired, how reads and writes move the expiry, whether a read should trigger
a background refresh, where a cold key is looked up before fetching, how
writes are mirrored, and what gets measured.

It does NOT store data, shard, lock or pick eviction victims.
*/
type CacheEngine struct {

	// Expiration controls how ExpireAt moves. Nil behaves like expiration.PerEntry.
	Expiration expiration.Strategy

	// Refresh decides whether a read schedules a background re-fetch. Optional.
	Refresh refresh.Hook

	// Store is the second-level store consulted on a cold key before the
	// fetch function runs. Optional.
	Store types.Store

	// WritePolicy mirrors mutations into Store (or anywhere else). Optional.
	WritePolicy writepolicy.WritePolicy

	// Metrics is never nil after NewCacheEngine.
	Metrics types.Metrics

	// Clock returns the current time. Tests replace it.
	Clock func() time.Time

	// FetchTimeout bounds one shared fetch. 0 means no bound beyond the
	// fetch function's own.
	FetchTimeout time.Duration
}

func NewCacheEngine(
	exp expiration.Strategy,
	refresh refresh.Hook,
	store types.Store,
	writePolicy writepolicy.WritePolicy,
	metrics types.Metrics,
) *CacheEngine {

	if exp == nil {
		exp = expiration.PerEntry{}
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}

	return &CacheEngine{
		Expiration:  exp,
		Refresh:     refresh,
		Store:       store,
		WritePolicy: writePolicy,
		Metrics:     metrics,
		Clock:       time.Now,
	}
}

func (e *CacheEngine) Now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}

func (e *CacheEngine) IsExpired(ent *types.CacheEntry) bool {
	return e.Expiration.IsExpired(ent, e.Now())
}

/*
OnRead runs after a hit. It slides the expiry for access-based strategies
and reports whether the refresh hook wants a background re-fetch.
*/
func (e *CacheEngine) OnRead(key string, ent *types.CacheEntry) bool {
	now := e.Now()
	e.Expiration.OnAccess(ent, now)

	if e.Refresh != nil && e.Refresh.OnRead(key, ent, now) {
		e.Metrics.Refresh()
		return true
	}
	return false
}

/*
OnWrite applies write-time expiration rules, then mirrors the write unless
mirror is false. Values that came out of Store are not mirrored back: that
would reset their lifetime in the store.
*/
func (e *CacheEngine) OnWrite(ctx context.Context, ent *types.CacheEntry, mirror bool) {
	e.Expiration.OnWrite(ent, e.Now())

	if mirror && e.WritePolicy != nil {
		e.WritePolicy.OnWrite(ctx, ent.Key, ent.Value, ent.Remaining(e.Now()))
	}
}

func (e *CacheEngine) OnRemove(ctx context.Context, key string) {
	if e.WritePolicy != nil {
		e.WritePolicy.OnRemove(ctx, key)
	}
}

func (e *CacheEngine) OnRemovePrefix(ctx context.Context, prefix string) {
	if e.WritePolicy != nil {
		e.WritePolicy.OnRemovePrefix(ctx, prefix)
	}
}

func (e *CacheEngine) OnClear(ctx context.Context) {
	if e.WritePolicy != nil {
		e.WritePolicy.OnClear(ctx)
	}
}

/*
Load asks the second-level store for a cold key. A store error other than
ErrNotFound is treated as a miss: the fetch function is still the source of
truth.
*/
func (e *CacheEngine) Load(ctx context.Context, key string) (any, bool) {
	if e.Store == nil {
		return nil, false
	}
	v, err := e.Store.Load(ctx, key)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Fetch runs fn under FetchTimeout and records it.
func (e *CacheEngine) Fetch(ctx context.Context, fn types.FetchFunc) (any, error) {
	if e.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.FetchTimeout)
		defer cancel()
	}

	start := e.Now()
	v, err := fn(ctx)
	e.Metrics.Fetch(e.Now().Sub(start), err)
	return v, err
}

// Close releases the write policy.
func (e *CacheEngine) Close() {
	if e.WritePolicy != nil {
		e.WritePolicy.Close()
	}
}
