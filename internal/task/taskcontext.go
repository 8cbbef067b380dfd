// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package task

import (
	"sync"
	"time"

	"github.com/heremaps/here-data-sdk-go/pkg/client"
)

// State is the lifecycle of a TaskContext.
type State int

// TaskContext lifecycle states. Transitions are Pending -> InProgress
// -> Completed and happen at most once each.
const (
	Pending State = iota
	InProgress
	Completed
)

// ExecuteFunc is the work a TaskContext performs; it observes ctx for
// cooperative cancellation and returns the final result.
type ExecuteFunc[T any] func(ctx *CancellationContext) client.Result[T]

// CallbackFunc receives the final result exactly once.
type CallbackFunc[T any] func(client.Result[T])

// TaskContext wraps a one-shot "execute-then-callback" envelope with
// exactly-once delivery and blocking cancel, per spec §4.3.
type TaskContext[T any] struct {
	mu        sync.Mutex
	state     State
	execute   ExecuteFunc[T]
	callback  CallbackFunc[T]
	cancelCtx *CancellationContext
	done      *Condition
}

// NewTaskContext builds a pending TaskContext around execute/callback.
func NewTaskContext[T any](execute ExecuteFunc[T], callback CallbackFunc[T]) *TaskContext[T] {
	return &TaskContext[T]{
		execute:   execute,
		callback:  callback,
		cancelCtx: NewCancellationContext(),
		done:      NewCondition(),
	}
}

// Execute runs at most once: the first call transitions
// Pending->InProgress, moves out the stored closures, runs execute,
// delivers the result to callback, signals completion and transitions
// to Completed. Later calls are no-ops.
func (t *TaskContext[T]) Execute() {
	t.mu.Lock()
	if t.state != Pending {
		t.mu.Unlock()
		return
	}
	t.state = InProgress
	execute := t.execute
	callback := t.callback
	t.execute = nil
	t.callback = nil
	t.mu.Unlock()

	var result client.Result[T]
	if execute == nil {
		// Cancelled before a worker ever picked this up.
		result = client.Failed[T](client.Cancelled())
	} else {
		result = execute(t.cancelCtx)
	}

	if t.cancelCtx.IsCancelled() {
		if result.Err == nil || result.Err.Kind != client.KindTimeout {
			result = client.Failed[T](client.Cancelled())
		}
	}

	if callback != nil {
		callback(result)
	}

	// Captures held by execute/callback must already be gone (we
	// nilled them above) before we notify, so a completed
	// BlockingCancel implies those resources are released.
	t.done.Notify()

	t.mu.Lock()
	t.state = Completed
	t.mu.Unlock()
}

// BlockingCancel cancels the task and waits up to timeout for it to
// finish. Returns true immediately if already Completed; otherwise
// returns true iff completion was observed within timeout.
func (t *TaskContext[T]) BlockingCancel(timeout time.Duration) bool {
	t.mu.Lock()
	if t.state == Completed {
		t.mu.Unlock()
		return true
	}
	// Drop the stored execute closure so a not-yet-started task
	// releases its captures immediately rather than waiting for a
	// scheduler slot; Execute() tolerates a nil execute.
	t.execute = nil
	t.mu.Unlock()

	t.cancelCtx.CancelOperation()
	return t.done.Wait(timeout)
}

// CancelToken returns a token whose Cancel merely cancels the
// underlying context without blocking for completion.
func (t *TaskContext[T]) CancelToken() CancellationToken {
	return NewCancellationToken(func() { t.cancelCtx.CancelOperation() })
}

// State reports the current lifecycle state.
func (t *TaskContext[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
