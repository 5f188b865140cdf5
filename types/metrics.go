package types

import "time"

/*
Metrics is how the cache reports what it is doing.
Each method is one event in the cache lifecycle.
*/
type Metrics interface {

	// Hit is called when a key is served from memory.
	Hit()

	// Miss is called when a key is not in memory (or was expired).
	Miss()

	// Eviction is called when a key is dropped because its shard is full.
	Eviction()

	// Expire is called when a read finds a key past its TTL.
	Expire()

	// Refresh is called when the refresh hook schedules a background fetch.
	Refresh()

	// Fetch is called once per executed fetch function, with its duration and result.
	Fetch(d time.Duration, err error)

	// Shared is called when a caller joined a fetch that was already in flight.
	Shared()
}

// NoopMetrics ignores every event. The engine falls back to it when no
// Metrics is configured so call sites never nil-check.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                       {}
func (NoopMetrics) Miss()                      {}
func (NoopMetrics) Eviction()                  {}
func (NoopMetrics) Expire()                    {}
func (NoopMetrics) Refresh()                   {}
func (NoopMetrics) Fetch(time.Duration, error) {}
func (NoopMetrics) Shared()                    {}
