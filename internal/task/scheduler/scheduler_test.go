// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package scheduler_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/heremaps/here-data-sdk-go/internal/task"
	"github.com/heremaps/here-data-sdk-go/internal/task/scheduler"
)

func TestInline_RunsOnCallerGoroutine(t *testing.T) {
	s := scheduler.NewInline()
	ranOnCaller := false
	s.ScheduleTask(func() { ranOnCaller = true }, task.PriorityNormal)
	assert.True(t, ranOnCaller)
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	s := scheduler.New(4)
	defer s.Shutdown()

	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		s.ScheduleTask(func() {
			defer wg.Done()
			atomic.AddInt32(&count, 1)
		}, task.PriorityNormal)
	}
	wg.Wait()
	assert.EqualValues(t, 50, count)
}

func TestPool_SameThreadSamePriorityIsOrdered(t *testing.T) {
	s := scheduler.New(1)
	defer s.Shutdown()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		s.ScheduleTask(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}, task.PriorityNormal)
	}
	wg.Wait()

	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestPool_PanicDoesNotKillPool(t *testing.T) {
	s := scheduler.New(1)
	defer s.Shutdown()

	s.ScheduleTask(func() { panic("boom") }, task.PriorityNormal)

	done := make(chan struct{})
	s.ScheduleTask(func() { close(done) }, task.PriorityNormal)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler stopped running tasks after a panic")
	}
}
