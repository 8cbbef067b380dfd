// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package scheduler implements the bounded worker pool that runs
// submitted closures in priority order (component B).
package scheduler

import (
	"sync"

	"github.com/heremaps/here-data-sdk-go/internal/task"
)

// Scheduler executes opaque closures, optionally across a fixed pool
// of worker goroutines. Scheduling itself never fails; a closure that
// panics is caught and discarded so one bad task cannot take down the
// pool (spec §4.2 "closure exceptions must be caught and discarded").
type Scheduler interface {
	// ScheduleTask enqueues fn to run at the given priority.
	ScheduleTask(fn func(), priority task.Priority)
	// Shutdown drains pending work and stops accepting new tasks.
	Shutdown()
}

// inline is the N=0 scheduler: it runs every task synchronously on
// the calling goroutine. The core must tolerate this mode (spec §4.2).
type inline struct{}

// NewInline returns a scheduler that executes every task on the
// caller's goroutine, for single-thread/test configurations.
func NewInline() Scheduler { return inline{} }

func (inline) ScheduleTask(fn func(), _ task.Priority) { runSafely(fn) }
func (inline) Shutdown()                               {}

// pool is a fixed-size worker pool pulling from a shared stable
// priority queue via a sync queue, the reference implementation
// described in spec §4.2: the priority queue provides ordering, the
// sync queue provides the blocking pull and close/drain semantics.
// ScheduleTask pushes a ticket per submitted task; a worker pulls a
// ticket, then pops whatever task currently has the highest priority.
type pool struct {
	mu      sync.Mutex
	queue   *task.PriorityQueueExtended[func()]
	pending *task.SyncQueue[struct{}]
	closed  bool
	wg      sync.WaitGroup
}

// New returns a worker pool of the given size (>=1). Two tasks
// submitted from the same thread with the same priority run in
// submission order, guaranteed by the underlying stable priority
// queue.
func New(workers int) Scheduler {
	if workers < 1 {
		workers = 1
	}
	p := &pool{
		queue:   task.NewPriorityQueueExtended[func()](),
		pending: task.NewSyncQueue[struct{}](),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for {
		if _, ok := p.pending.Pull(); !ok {
			// The sync queue closed: drain the tasks still queued,
			// then exit (Shutdown drains pending work).
			for {
				fn, ok := p.pop()
				if !ok {
					return
				}
				runSafely(fn)
			}
		}
		if fn, ok := p.pop(); ok {
			runSafely(fn)
		}
	}
}

func (p *pool) pop() (func(), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Pop()
}

func (p *pool) ScheduleTask(fn func(), priority task.Priority) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue.Push(fn, priority)
	p.mu.Unlock()
	p.pending.Push(struct{}{})
}

func (p *pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.pending.Close()
	p.wg.Wait()
}

func runSafely(fn func()) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn()
}
