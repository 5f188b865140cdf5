package shard

import (
	"sync"
	"sync/atomic"

	"github.com/krisalay/estate-cache/eviction"
)

/*
Shard is one independent slice of the cache with its own store, eviction
bookkeeping and write lock. Splitting the key space keeps writers on
different keys from contending.
*/
type Shard struct {

	// Store holds the entries of this shard. Reads go straight to it.
	Store ShardStore

	// Eviction tracks usage for capacity-bound shards.
	Eviction eviction.Policy

	// Capacity is the maximum number of entries; 0 means unbounded.
	Capacity int

	// EvictMu serialises writers and every access to Eviction.
	EvictMu sync.Mutex

	// Gen is bumped by every removal and clear. A fetch that started under
	// an older generation must not store its result.
	Gen atomic.Uint64
}

func NewShard(ev eviction.Policy, capacity int) *Shard {
	return &Shard{
		Store:    NewMapStore(),
		Eviction: ev,
		Capacity: capacity,
	}
}

// Full reports whether inserting a new key needs an eviction first.
// Callers hold EvictMu.
func (s *Shard) Full(key string) bool {
	if s.Capacity <= 0 {
		return false
	}
	if _, ok := s.Store.Get(key); ok {
		return false
	}
	return s.Store.Size() >= int64(s.Capacity)
}
