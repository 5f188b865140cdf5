package cache

import (
	"context"
	"time"

	"github.com/krisalay/estate-cache/shard"
	"github.com/krisalay/estate-cache/types"
)

func (c *ShardedCache) GetOrFetch(
	ctx context.Context,
	key string,
	fetch types.FetchFunc,
	ttl time.Duration,
) (any, error) {

	if c.closed.Load() {
		return nil, ErrClosed
	}

	if v, ok := c.Get(key); ok {
		return v, nil
	}

	/*
		singleflight ensures that when many goroutines miss the same key at
		once, only the first runs fetch; the rest wait for its result.

		The shared fetch runs detached from the first caller's cancellation
		so one impatient caller cannot fail everyone else. Every caller still
		stops waiting when its own ctx ends.
	*/
	leader := false
	ch := c.sf.DoChan(key, func() (any, error) {
		leader = true
		return c.load(context.WithoutCancel(ctx), key, fetch, ttl, false)
	})

	select {
	case res := <-ch:
		if !leader {
			c.engine.Metrics.Shared()
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

/*
load runs inside the in-flight slot of key:
 1. re-check memory (a previous flight may have just stored the key)
 2. ask the second-level store
 3. run fetch

The result is stored only if nothing invalidated the key meanwhile. Errors
are never stored.
*/
func (c *ShardedCache) load(
	ctx context.Context,
	key string,
	fetch types.FetchFunc,
	ttl time.Duration,
	refreshing bool,
) (any, error) {

	sh := c.selector.Select(key, c.shards)

	sh.EvictMu.Lock()
	gen := sh.Gen.Load()
	prev, _ := sh.Store.Get(key)
	fresh := prev != nil && !c.engine.IsExpired(prev)
	sh.EvictMu.Unlock()

	if !refreshing && fresh {
		return prev.Value, nil
	}

	if !refreshing {
		if v, ok := c.engine.Load(ctx, key); ok {
			c.storeIfCurrent(ctx, sh, gen, prev, key, v, ttl, fetch, false)
			return v, nil
		}
	}

	v, err := c.engine.Fetch(ctx, fetch)
	if err != nil {
		return nil, err
	}

	c.storeIfCurrent(ctx, sh, gen, prev, key, v, ttl, fetch, true)
	return v, nil
}

// storeIfCurrent stores v unless key was removed, cleared or overwritten
// since the flight started.
func (c *ShardedCache) storeIfCurrent(
	ctx context.Context,
	sh *shard.Shard,
	gen uint64,
	prev *types.CacheEntry,
	key string,
	v any,
	ttl time.Duration,
	fetch types.FetchFunc,
	mirror bool,
) {
	if c.closed.Load() {
		return
	}

	sh.EvictMu.Lock()
	defer sh.EvictMu.Unlock()

	if sh.Gen.Load() != gen {
		return
	}
	if cur, _ := sh.Store.Get(key); cur != prev {
		return
	}
	c.putLocked(ctx, sh, key, v, ttl, fetch, mirror)
}

// refreshAsync re-runs the fetch of a hot entry in the background. At most
// one refresh per key is scheduled at a time, and it shares the in-flight
// slot with GetOrFetch callers.
func (c *ShardedCache) refreshAsync(key string, ent *types.CacheEntry) {
	if _, busy := c.refreshing.LoadOrStore(key, struct{}{}); busy {
		return
	}

	go func() {
		defer c.refreshing.Delete(key)
		_, _, _ = c.sf.Do(key, func() (any, error) {
			sh := c.selector.Select(key, c.shards)
			// Replaced since the read that scheduled us: behave like a plain
			// load so a GetOrFetch caller sharing this slot still gets a value.
			cur, _ := sh.Store.Get(key)
			return c.load(context.Background(), key, ent.Fetch, ent.TTL, cur == ent)
		})
	}()
}
