// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package task provides the cancellation and task-context primitives
// that every asynchronous operation in the runtime is built from:
// CancellationToken, CancellationContext, Condition, SyncQueue,
// PriorityQueueExtended and TaskContext.
package task

import "sync"

// CancellationToken holds a cancel closure. Cancel invokes the
// closure at most once; subsequent calls are no-ops. A zero-value
// token's Cancel is a no-op, so callers never need a nil check.
type CancellationToken struct {
	mu     *sync.Mutex
	cancel func()
	fired  *bool
}

// NewCancellationToken wraps fn so it runs at most once.
func NewCancellationToken(fn func()) CancellationToken {
	return CancellationToken{mu: &sync.Mutex{}, cancel: fn, fired: new(bool)}
}

// Cancel invokes the wrapped closure exactly once, across any number
// of calls or copies of this token.
func (t CancellationToken) Cancel() {
	if t.cancel == nil {
		return
	}
	t.mu.Lock()
	already := *t.fired
	*t.fired = true
	t.mu.Unlock()
	if !already {
		t.cancel()
	}
}

// CancellationContext is a shared, refcount-free cancellation point:
// cancelling it cancels whatever token is currently registered, and
// refuses (by immediately cancelling) any token registered after the
// fact. It implements the cooperative-cancellation contract of spec
// §4.1/§5: workers register their in-flight token and the context
// decides, under one lock, whether to run or to cancel immediately.
type CancellationContext struct {
	mu        sync.Mutex
	cancelled bool
	current   CancellationToken
}

// NewCancellationContext returns a fresh, not-yet-cancelled context.
func NewCancellationContext() *CancellationContext {
	return &CancellationContext{}
}

// ExecuteOrCancelled atomically checks cancellation: if the context
// is already cancelled, cancelFn runs; otherwise executeFn runs and
// its returned token becomes the context's current token. If the
// context is cancelled concurrently with this call, the new token is
// still guaranteed to observe it via CancelOperation's own lock.
func (c *CancellationContext) ExecuteOrCancelled(executeFn func() CancellationToken, cancelFn func()) {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		cancelFn()
		return
	}
	// executeFn must run before we store its token, and the token
	// must be stored before CancelOperation can observe it, so both
	// happen under the lock.
	c.current = executeFn()
	c.mu.Unlock()
}

// CancelOperation marks the context cancelled and cancels whatever
// token is currently registered, outside the lock so the token's own
// closure may safely call back into this context.
func (c *CancellationContext) CancelOperation() {
	c.mu.Lock()
	c.cancelled = true
	tok := c.current
	c.current = CancellationToken{}
	c.mu.Unlock()
	tok.Cancel()
}

// IsCancelled reports whether CancelOperation has been called.
func (c *CancellationContext) IsCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}
