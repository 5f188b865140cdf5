package writepolicy

import (
	"context"
	"errors"
	"time"
)

/*
WritePolicy mirrors cache mutations into a second-level store so other
processes (and this one after a restart) can warm from it.

Mirroring is best effort: a failed store write never fails the cache write.
Failures are reported through an ErrorHandler.

Invalidations (OnRemove, OnRemovePrefix, OnClear) have reached the store
when they return, so the cache never loads a removed value back from it.
*/
type WritePolicy interface {
	OnWrite(ctx context.Context, key string, value any, ttl time.Duration)
	OnRemove(ctx context.Context, key string)
	OnRemovePrefix(ctx context.Context, prefix string)
	OnClear(ctx context.Context)

	// Close flushes pending work. It is safe to call more than once.
	Close()
}

// ErrQueueFull is reported when a write-back queue drops a mutation.
var ErrQueueFull = errors.New("writepolicy: queue full, mutation dropped")

// ErrorHandler receives mirroring failures. op is "put", "delete",
// "delete_prefix" or "clear".
type ErrorHandler func(op, key string, err error)

// Mode names a write policy for configuration.
type Mode string

const (
	ThroughMode Mode = "through"
	BackMode    Mode = "back"
)

func report(h ErrorHandler, op, key string, err error) {
	if err != nil && h != nil {
		h(op, key, err)
	}
}
