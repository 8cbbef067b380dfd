// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package continuation implements the continuation chain (component
// K): a builder of linear, cancellable, type-chaining async pipelines
// that drive themselves forward one step at a time on a scheduler.
package continuation

import (
	"sync"

	"github.com/heremaps/here-data-sdk-go/internal/task"
	"github.com/heremaps/here-data-sdk-go/pkg/client"
)

// Scheduler is the slice of internal/task/scheduler.Scheduler a chain
// needs: somewhere to submit its first step.
type Scheduler interface {
	ScheduleTask(fn func(), priority task.Priority)
}

// step is a type-erased pipeline stage: given the cancellation
// context and the previous stage's output, it produces the next
// stage's output or an error that short-circuits the chain. Chain
// itself stays non-generic (its steps change output type at every
// stage, which a single Go type parameter cannot express); the
// generic entry points below (Start, Then, Finally) give each call
// site static types while the chain threads `any` internally.
type step func(ctx *task.CancellationContext, in any) (any, *client.ApiError)

// Chain is a builder of linear async pipelines. It is safe to call
// Then/Finally/Run from a single goroutine only, matching the
// teacher's single-owner builder convention; the scheduled execution
// itself is safe to run on any goroutine.
type Chain struct {
	mu        sync.Mutex
	steps     []step
	seed      any
	finalCb   func(any, *client.ApiError)
	sched     Scheduler
	cancelCtx *task.CancellationContext
	ran       bool
}

// Start builds a new Chain seeded with the initial input value.
func Start[In any](sched Scheduler, seed In) *Chain {
	return &Chain{
		seed:      seed,
		sched:     sched,
		cancelCtx: task.NewCancellationContext(),
	}
}

// Then appends a step converting In to Out. It is illegal to call
// after Run; doing so is silently ignored per spec §4.11.
func Then[In, Out any](c *Chain, fn func(ctx *task.CancellationContext, in In) (Out, *client.ApiError)) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ran {
		return c
	}
	c.steps = append(c.steps, func(ctx *task.CancellationContext, in any) (any, *client.ApiError) {
		typed, ok := in.(In)
		if !ok {
			var zero In
			typed = zero
		}
		out, err := fn(ctx, typed)
		return out, err
	})
	return c
}

// Finally sets the terminal callback, receiving the chain's final
// Result[Out]. Calling it more than once replaces the previous
// callback; it is illegal (silently ignored) after Run.
func Finally[Out any](c *Chain, cb func(client.Result[Out])) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ran {
		return c
	}
	c.finalCb = func(v any, err *client.ApiError) {
		if err != nil {
			cb(client.Failed[Out](err))
			return
		}
		typed, ok := v.(Out)
		if !ok {
			cb(client.Failed[Out](client.NewError(client.KindUnknown, "continuation type mismatch")))
			return
		}
		cb(client.Ok(typed))
	}
	return c
}

// CancelToken returns a token that cancels the chain: subsequent
// steps will not run, and finalCb (if set) receives Cancelled.
func (c *Chain) CancelToken() task.CancellationToken {
	return task.NewCancellationToken(func() { c.cancelCtx.CancelOperation() })
}

// Run schedules the first step (if any) on the configured scheduler.
// Calling Run more than once has no effect after the first call.
func (c *Chain) Run() {
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return
	}
	c.ran = true
	steps := c.steps
	seed := c.seed
	c.mu.Unlock()

	c.sched.ScheduleTask(func() {
		c.runStep(0, seed, steps)
	}, task.PriorityNormal)
}

func (c *Chain) runStep(idx int, in any, steps []step) {
	if c.cancelCtx.IsCancelled() {
		c.deliver(nil, client.Cancelled())
		return
	}
	if idx >= len(steps) {
		c.deliver(in, nil)
		return
	}

	out, apiErr := steps[idx](c.cancelCtx, in)
	if c.cancelCtx.IsCancelled() {
		c.deliver(nil, client.Cancelled())
		return
	}
	if apiErr != nil {
		c.deliver(nil, apiErr)
		return
	}
	c.runStep(idx+1, out, steps)
}

// deliver invokes finalCb exactly once; a nil finalCb silently
// discards the result (e.g. a fire-and-forget chain).
func (c *Chain) deliver(v any, err *client.ApiError) {
	c.mu.Lock()
	cb := c.finalCb
	c.finalCb = nil
	c.mu.Unlock()
	if cb != nil {
		cb(v, err)
	}
}
