// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package broker coalesces concurrent callers issuing semantically
// equivalent requests (component J): the second and later callers for
// the same RequestKey attach to the in-flight operation instead of
// triggering a duplicate.
package broker

import (
	"sync"
	"sync/atomic"

	"github.com/heremaps/here-data-sdk-go/internal/task"
)

// RequestKey identifies a semantically equivalent request: same
// catalog, operation, and identifying arguments, however the caller
// chooses to compose that into a string.
type RequestKey string

// CallerID is an opaque, process-local identifier for one attached
// caller. Ids never cross process boundaries, so a simple atomic
// counter is sufficient (redesigned from the original's ad-hoc
// monotonic counter into a single seeded atomic.Uint64).
type CallerID uint64

// Callback receives the eventual result of the coalesced operation.
// Response is the broker-agnostic payload type (typically a
// client.Result[T] wrapper supplied by the caller as `any`).
type Callback func(response any)

// Association is returned by CreateOrAssociate.
type Association struct {
	CancelCtx   *task.CancellationContext
	CancelToken task.CancellationToken
	JustCreated bool
	CallerID    CallerID
}

type requestContext struct {
	cancelCtx *task.CancellationContext
	callers   map[CallerID]Callback
}

// Broker is safe for concurrent use.
type Broker struct {
	mu       sync.Mutex
	requests map[RequestKey]*requestContext
	nextID   uint64
}

// New builds an empty Broker.
func New() *Broker {
	return &Broker{requests: make(map[RequestKey]*requestContext)}
}

// CreateOrAssociate attaches callback to the in-flight request for
// key, or starts a new one if none exists. The returned CancelToken
// cancels only this caller's attachment: if other callers remain
// associated with key, the underlying operation keeps running; if
// this was the last caller, the operation itself is cancelled.
func (b *Broker) CreateOrAssociate(key RequestKey, callback Callback) Association {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := CallerID(atomic.AddUint64(&b.nextID, 1))

	rc, exists := b.requests[key]
	if !exists {
		rc = &requestContext{
			cancelCtx: task.NewCancellationContext(),
			callers:   make(map[CallerID]Callback),
		}
		b.requests[key] = rc
	}
	rc.callers[id] = callback

	return Association{
		CancelCtx:   rc.cancelCtx,
		CancelToken: b.callerCancelToken(key, id),
		JustCreated: !exists,
		CallerID:    id,
	}
}

// callerCancelToken builds a token that detaches caller id from key's
// callers, delivering Cancelled to that one caller, and cancels the
// shared operation only if no callers remain afterward.
func (b *Broker) callerCancelToken(key RequestKey, id CallerID) task.CancellationToken {
	return task.NewCancellationToken(func() {
		b.mu.Lock()
		rc, ok := b.requests[key]
		if !ok {
			b.mu.Unlock()
			return
		}
		cb, hasCaller := rc.callers[id]
		delete(rc.callers, id)
		empty := len(rc.callers) == 0
		if empty {
			delete(b.requests, key)
		}
		b.mu.Unlock()

		if hasCaller {
			cb(Cancelled{})
		}
		if empty {
			rc.cancelCtx.CancelOperation()
		}
	})
}

// Cancelled is delivered to a single cancelling caller that detaches
// from a request other callers remain attached to.
type Cancelled struct{}

// CompleteRequest removes key's entry and dispatches response to
// every attached callback, outside the lock so callbacks may
// themselves call back into the broker.
func (b *Broker) CompleteRequest(key RequestKey, response any) {
	b.mu.Lock()
	rc, ok := b.requests[key]
	if ok {
		delete(b.requests, key)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	for _, cb := range rc.callers {
		cb(response)
	}
}

// CallerCount reports how many callers are currently attached to key,
// for tests and diagnostics.
func (b *Broker) CallerCount(key RequestKey) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	rc, ok := b.requests[key]
	if !ok {
		return 0
	}
	return len(rc.callers)
}
