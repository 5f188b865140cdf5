package writepolicy

import (
	"context"
	"sync"
	"time"

	"github.com/krisalay/estate-cache/types"
)

type opKind int

const (
	opPut opKind = iota
	opDelete
	opDeletePrefix
	opClear
)

// writeReq is one queued mutation. key holds the prefix for opDeletePrefix.
type writeReq struct {
	ctx   context.Context
	kind  opKind
	key   string
	value any
	ttl   time.Duration

	// done is closed once the store has applied the request.
	done chan struct{}
}

/*
WriteBackPolicy queues mutations and applies them to the store from one
background worker, in order.

Puts never block: when the queue is full the put is dropped and reported as
ErrQueueFull. Invalidations are never dropped; they wait behind the pending
puts until the store has applied them.
*/
type WriteBackPolicy struct {
	store   types.Store
	onError ErrorHandler

	ch chan writeReq
	wg sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewWriteBackPolicy(store types.Store, buffer int, onError ErrorHandler) *WriteBackPolicy {
	w := &WriteBackPolicy{
		store:   store,
		onError: onError,
		ch:      make(chan writeReq, buffer),
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

func (w *WriteBackPolicy) OnWrite(ctx context.Context, key string, value any, ttl time.Duration) {
	w.enqueue(writeReq{ctx: ctx, kind: opPut, key: key, value: value, ttl: ttl})
}

func (w *WriteBackPolicy) OnRemove(ctx context.Context, key string) {
	w.invalidate(writeReq{ctx: ctx, kind: opDelete, key: key})
}

func (w *WriteBackPolicy) OnRemovePrefix(ctx context.Context, prefix string) {
	w.invalidate(writeReq{ctx: ctx, kind: opDeletePrefix, key: prefix})
}

func (w *WriteBackPolicy) OnClear(ctx context.Context) {
	w.invalidate(writeReq{ctx: ctx, kind: opClear})
}

func (w *WriteBackPolicy) invalidate(req writeReq) {
	req.ctx = context.WithoutCancel(req.ctx)
	req.done = make(chan struct{})

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return
	}
	w.ch <- req
	w.mu.RUnlock()

	<-req.done
}

func (w *WriteBackPolicy) enqueue(req writeReq) {
	// The request outlives the caller; keep its values, drop its deadline.
	req.ctx = context.WithoutCancel(req.ctx)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- req:
	default:
		report(w.onError, req.op(), req.key, ErrQueueFull)
	}
}

func (w *WriteBackPolicy) worker() {
	defer w.wg.Done()

	for req := range w.ch {
		var err error
		switch req.kind {
		case opPut:
			err = w.store.Put(req.ctx, req.key, req.value, req.ttl)
		case opDelete:
			err = w.store.Delete(req.ctx, req.key)
		case opDeletePrefix:
			err = w.store.DeletePrefix(req.ctx, req.key)
		case opClear:
			err = w.store.Clear(req.ctx)
		}
		report(w.onError, req.op(), req.key, err)
		if req.done != nil {
			close(req.done)
		}
	}
}

// Close stops accepting mutations and waits for the queue to drain.
func (w *WriteBackPolicy) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	w.wg.Wait()
}

func (r writeReq) op() string {
	switch r.kind {
	case opDelete:
		return "delete"
	case opDeletePrefix:
		return "delete_prefix"
	case opClear:
		return "clear"
	default:
		return "put"
	}
}
