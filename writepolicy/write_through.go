package writepolicy

import (
	"context"
	"time"

	"github.com/krisalay/estate-cache/types"
)

// WriteThroughPolicy forwards every mutation to the store before the cache
// call returns. A slow store makes cache writes slow.
type WriteThroughPolicy struct {
	store   types.Store
	onError ErrorHandler
}

func NewWriteThroughPolicy(store types.Store, onError ErrorHandler) *WriteThroughPolicy {
	return &WriteThroughPolicy{store: store, onError: onError}
}

func (w *WriteThroughPolicy) OnWrite(ctx context.Context, key string, value any, ttl time.Duration) {
	report(w.onError, "put", key, w.store.Put(ctx, key, value, ttl))
}

func (w *WriteThroughPolicy) OnRemove(ctx context.Context, key string) {
	report(w.onError, "delete", key, w.store.Delete(ctx, key))
}

func (w *WriteThroughPolicy) OnRemovePrefix(ctx context.Context, prefix string) {
	report(w.onError, "delete_prefix", prefix, w.store.DeletePrefix(ctx, prefix))
}

func (w *WriteThroughPolicy) OnClear(ctx context.Context) {
	report(w.onError, "clear", "", w.store.Clear(ctx))
}

// Close has nothing to flush.
func (w *WriteThroughPolicy) Close() {}
