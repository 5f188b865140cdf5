package shard

import "github.com/cespare/xxhash/v2"

/*
Selector decides which shard owns a key. A key must always map to the same
shard for the lifetime of the cache.
*/
type Selector interface {
	Select(string, []*Shard) *Shard
}

// HashSelector spreads keys with xxhash, which is fast and well distributed
// for the short structured keys this cache sees ("land-details-42").
type HashSelector struct{}

func (HashSelector) Select(key string, shards []*Shard) *Shard {
	if len(shards) == 1 {
		return shards[0]
	}
	return shards[xxhash.Sum64String(key)%uint64(len(shards))]
}
