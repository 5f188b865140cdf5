package shard

import (
	"strings"
	"sync"

	"github.com/krisalay/estate-cache/types"
)

// ShardStore is the key -> entry map of one shard.
type ShardStore interface {
	Get(string) (*types.CacheEntry, bool)
	Put(string, *types.CacheEntry)
	Delete(string) bool
	Size() int64

	// KeysWithPrefix lists the keys starting with prefix ("" lists all).
	KeysWithPrefix(string) []string

	// Reset drops every entry.
	Reset()
}

// mapStore is a plain map behind an RWMutex. Reads share the lock, so the
// read path stays cheap while writes stay O(1).
type mapStore struct {
	mu   sync.RWMutex
	data map[string]*types.CacheEntry
}

func NewMapStore() ShardStore {
	return &mapStore{data: make(map[string]*types.CacheEntry)}
}

func (s *mapStore) Get(key string) (*types.CacheEntry, bool) {
	s.mu.RLock()
	ent, ok := s.data[key]
	s.mu.RUnlock()
	return ent, ok
}

func (s *mapStore) Put(key string, ent *types.CacheEntry) {
	s.mu.Lock()
	s.data[key] = ent
	s.mu.Unlock()
}

func (s *mapStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return false
	}
	delete(s.data, key)
	return true
}

func (s *mapStore) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data))
}

func (s *mapStore) KeysWithPrefix(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *mapStore) Reset() {
	s.mu.Lock()
	s.data = make(map[string]*types.CacheEntry)
	s.mu.Unlock()
}
