package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/krisalay/estate-cache/api"
	"github.com/krisalay/estate-cache/engine"
	evict "github.com/krisalay/estate-cache/eviction"
	"github.com/krisalay/estate-cache/shard"
	"github.com/krisalay/estate-cache/types"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("cache: closed")

var _ api.Cache = (*ShardedCache)(nil)

/*
ShardedCache is the main cache implementation. It is an explicit object:
construct one per concern and pass it to whoever needs it.

It connects:
- shards (storage + per-shard locking and eviction)
- the engine (expiration, refresh, second-level store, write mirroring, metrics)
- singleflight (one in-flight fetch per key)
*/
type ShardedCache struct {
	shards []*shard.Shard

	engine *engine.CacheEngine

	selector shard.Selector

	// sf shares one fetch between concurrent GetOrFetch callers of a key.
	sf singleflight.Group

	// refreshing holds keys with a background refresh already scheduled.
	refreshing sync.Map

	closed atomic.Bool
}

/*
NewShardedCache builds a cache of the given number of shards. capacity is the
total entry bound spread across shards; 0 means unbounded. A nil engine gets
the defaults of engine.NewCacheEngine.
*/
func NewShardedCache(
	shards int,
	capacity int,
	eviction evict.PolicyType,
	eng *engine.CacheEngine,
) *ShardedCache {

	if shards < 1 {
		shards = 1
	}
	if eng == nil {
		eng = engine.NewCacheEngine(nil, nil, nil, nil, nil)
	}

	perShard := 0
	if capacity > 0 {
		perShard = (capacity + shards - 1) / shards
	}

	s := make([]*shard.Shard, shards)
	for i := range s {
		s[i] = shard.NewShard(evict.NewEvictionPolicy(eviction), perShard)
	}

	return &ShardedCache{
		shards:   s,
		engine:   eng,
		selector: shard.HashSelector{},
	}
}

// New is a shorthand for an unbounded LRU cache with default policies.
func New(shards int) *ShardedCache {
	return NewShardedCache(shards, 0, evict.LRU, nil)
}

func (c *ShardedCache) Get(key string) (any, bool) {
	sh := c.selector.Select(key, c.shards)

	ent, ok := sh.Store.Get(key)
	if !ok {
		c.engine.Metrics.Miss()
		return nil, false
	}

	// Entry metadata (expiry, access time) only changes under EvictMu.
	sh.EvictMu.Lock()
	if c.engine.IsExpired(ent) {
		c.dropLocked(sh, key, ent)
		sh.EvictMu.Unlock()
		c.engine.Metrics.Expire()
		c.engine.Metrics.Miss()
		return nil, false
	}
	refresh := c.engine.OnRead(key, ent)
	sh.Eviction.OnGet(key)
	sh.EvictMu.Unlock()

	c.engine.Metrics.Hit()
	if refresh {
		c.refreshAsync(key, ent)
	}
	return ent.Value, true
}

func (c *ShardedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}

	sh := c.selector.Select(key, c.shards)

	sh.EvictMu.Lock()
	defer sh.EvictMu.Unlock()

	c.putLocked(ctx, sh, key, value, ttl, nil, true)
	return nil
}

/*
Remove, RemovePrefix and Clear hold the shard locks until the invalidation
has reached the store. A flight that read the old value before cannot store
it (the generation moved), and one that starts afterwards loads from a store
that no longer has it.
*/
func (c *ShardedCache) Remove(key string) {
	sh := c.selector.Select(key, c.shards)

	sh.EvictMu.Lock()
	sh.Gen.Add(1)
	sh.Store.Delete(key)
	sh.Eviction.Remove(key)
	c.engine.OnRemove(context.Background(), key)
	sh.EvictMu.Unlock()

	c.sf.Forget(key)
}

func (c *ShardedCache) RemovePrefix(prefix string) int {
	c.lockAll()

	var removed []string
	for _, sh := range c.shards {
		// Bump even when nothing matches: a fetch for a matching key may be in flight.
		sh.Gen.Add(1)
		for _, k := range sh.Store.KeysWithPrefix(prefix) {
			sh.Store.Delete(k)
			sh.Eviction.Remove(k)
			removed = append(removed, k)
		}
	}
	c.engine.OnRemovePrefix(context.Background(), prefix)

	c.unlockAll()

	for _, k := range removed {
		c.sf.Forget(k)
	}
	return len(removed)
}

func (c *ShardedCache) Clear() {
	c.lockAll()
	for _, sh := range c.shards {
		sh.Gen.Add(1)
		sh.Store.Reset()
		sh.Eviction.Reset()
	}
	c.engine.OnClear(context.Background())
	c.unlockAll()
}

// lockAll takes every shard lock in index order.
func (c *ShardedCache) lockAll() {
	for _, sh := range c.shards {
		sh.EvictMu.Lock()
	}
}

func (c *ShardedCache) unlockAll() {
	for _, sh := range c.shards {
		sh.EvictMu.Unlock()
	}
}

func (c *ShardedCache) Len() int {
	var n int64
	for _, sh := range c.shards {
		n += sh.Store.Size()
	}
	return int(n)
}

func (c *ShardedCache) Expire(key string, ttl time.Duration) bool {
	sh := c.selector.Select(key, c.shards)

	sh.EvictMu.Lock()
	defer sh.EvictMu.Unlock()

	ent, ok := sh.Store.Get(key)
	if !ok || c.engine.IsExpired(ent) {
		return false
	}

	// Copy so a reader holding the old pointer never sees a torn update.
	cp := *ent
	cp.TTL = ttl
	if ttl > 0 {
		cp.ExpireAt = c.engine.Now().Add(ttl)
	} else {
		cp.ExpireAt = time.Time{}
	}
	sh.Store.Put(key, &cp)
	return true
}

func (c *ShardedCache) TTL(key string) time.Duration {
	sh := c.selector.Select(key, c.shards)

	sh.EvictMu.Lock()
	defer sh.EvictMu.Unlock()

	ent, ok := sh.Store.Get(key)
	if !ok {
		return -2
	}
	if ent.ExpireAt.IsZero() {
		return -1
	}

	d := ent.Remaining(c.engine.Now())
	if d <= 0 {
		return -2
	}
	return d
}

func (c *ShardedCache) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.engine.Close()
	c.reset()
}

// putLocked writes an entry. The caller holds sh.EvictMu.
func (c *ShardedCache) putLocked(
	ctx context.Context,
	sh *shard.Shard,
	key string,
	value any,
	ttl time.Duration,
	fetch types.FetchFunc,
	mirror bool,
) {
	if sh.Full(key) {
		if victim := sh.Eviction.Evict(); victim != "" {
			c.engine.Metrics.Eviction()
			sh.Store.Delete(victim)
		}
	}

	now := c.engine.Now()
	ent := &types.CacheEntry{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		LastAccessedAt: now,
		TTL:            ttl,
		Fetch:          fetch,
	}
	if ttl > 0 {
		ent.ExpireAt = now.Add(ttl)
	}

	c.engine.OnWrite(ctx, ent, mirror)

	sh.Store.Put(key, ent)
	sh.Eviction.OnPut(key)
}

// dropLocked removes ent if it is still the entry stored under key; a
// concurrent Set may already have replaced it. The caller holds sh.EvictMu.
func (c *ShardedCache) dropLocked(sh *shard.Shard, key string, ent *types.CacheEntry) {
	if cur, ok := sh.Store.Get(key); ok && cur == ent {
		sh.Store.Delete(key)
		sh.Eviction.Remove(key)
	}
}

func (c *ShardedCache) reset() {
	for _, sh := range c.shards {
		sh.EvictMu.Lock()
		sh.Gen.Add(1)
		sh.Store.Reset()
		sh.Eviction.Reset()
		sh.EvictMu.Unlock()
	}
}
