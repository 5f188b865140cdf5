package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	cache "github.com/krisalay/estate-cache"
	"github.com/krisalay/estate-cache/engine"
	"github.com/krisalay/estate-cache/eviction"
	"github.com/krisalay/estate-cache/expiration"
	"github.com/krisalay/estate-cache/types"
	"github.com/krisalay/estate-cache/writepolicy"
)

// ================= BACKING STORE =================

type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]any
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]any)}
}

func (s *InMemoryStore) Load(ctx context.Context, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, types.ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *InMemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]any)
	return nil
}

// ================= METRICS =================

type Metrics struct {
	hits, misses, evictions, fetches, shared atomic.Int64
}

func (m *Metrics) Hit()                       { m.hits.Add(1) }
func (m *Metrics) Miss()                      { m.misses.Add(1) }
func (m *Metrics) Eviction()                  { m.evictions.Add(1) }
func (m *Metrics) Expire()                    {}
func (m *Metrics) Refresh()                   {}
func (m *Metrics) Fetch(time.Duration, error) { m.fetches.Add(1) }
func (m *Metrics) Shared()                    { m.shared.Add(1) }

func (m *Metrics) Print() {
	fmt.Println("\n==================== METRICS ====================")
	fmt.Printf("HITS      : %d\n", m.hits.Load())
	fmt.Printf("MISSES    : %d\n", m.misses.Load())
	fmt.Printf("EVICTIONS : %d\n", m.evictions.Load())
	fmt.Printf("FETCHES   : %d\n", m.fetches.Load())
	fmt.Printf("SHARED    : %d\n", m.shared.Load())
}

// ================= BENCHMARK =================

func main() {
	ctx := context.Background()

	const (
		shards      = 8
		capacity    = 200000
		preloadKeys = 100000
		goroutines  = 200
		opsPerG     = 5000
		fetchDelay  = 50 * time.Millisecond
	)

	fmt.Println("\n================ CACHE LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards       :", shards)
	fmt.Println("Capacity     :", capacity)
	fmt.Println("Preload Keys :", preloadKeys)
	fmt.Println("Goroutines   :", goroutines)
	fmt.Println("Ops/Goroutine:", opsPerG)
	fmt.Println("---------------------------------")

	store := NewInMemoryStore()
	metrics := &Metrics{}

	writePolicy := writepolicy.NewWriteBackPolicy(store, 4096, func(op, key string, err error) {
		fmt.Printf("STORE  → %s %s failed: %v\n", op, key, err)
	})

	engine := engine.NewCacheEngine(
		&expiration.ExpireAfterWrite{TTL: 60 * time.Second},
		nil,
		store,
		writePolicy,
		metrics,
	)

	c := cache.NewShardedCache(
		shards,
		capacity,
		eviction.LRU,
		engine,
	)
	defer c.Close()

	// ---------------- Thundering Herd ----------------
	fmt.Println("\nCold key, all goroutines at once...")

	var calls atomic.Int64
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(fetchDelay)
		return map[string]any{"id": 42, "title": "Hillside plot"}, nil
	}

	start := time.Now()
	wg := sync.WaitGroup{}
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := c.GetOrFetch(ctx, "land-details-42", fetch, time.Minute); err != nil {
				fmt.Println("GetOrFetch failed:", err)
			}
		}()
	}
	wg.Wait()

	fmt.Printf("Callers          : %d\n", goroutines)
	fmt.Printf("Fetch calls      : %d\n", calls.Load())
	fmt.Printf("Time             : %v\n", time.Since(start))

	// ---------------- Preload ----------------
	fmt.Println("\nPreloading cache...")
	for i := 0; i < preloadKeys; i++ {
		if err := c.Set(ctx, fmt.Sprintf("key-%d", i), i, 0); err != nil {
			fmt.Println("Set failed:", err)
			return
		}
	}
	fmt.Println("Preload complete.")

	// ---------------- Hit Path ----------------
	fmt.Println("\nRunning concurrency benchmark...")

	start = time.Now()
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerG; j++ {
				c.Get(fmt.Sprintf("key-%d", j%preloadKeys))
			}
		}()
	}
	wg.Wait()

	duration := time.Since(start)
	totalOps := goroutines * opsPerG

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Println("=========================================")

	metrics.Print()
}
