// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package task_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heremaps/here-data-sdk-go/pkg/client"

	"github.com/heremaps/here-data-sdk-go/internal/task"
)

func TestTaskContext_OnceOnly(t *testing.T) {
	var executeCalls, callbackCalls int32

	tc := task.NewTaskContext[int](
		func(ctx *task.CancellationContext) client.Result[int] {
			atomic.AddInt32(&executeCalls, 1)
			return client.Ok(42)
		},
		func(r client.Result[int]) {
			atomic.AddInt32(&callbackCalls, 1)
		},
	)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tc.Execute()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, executeCalls)
	assert.EqualValues(t, 1, callbackCalls)
	assert.Equal(t, task.Completed, tc.State())
}

func TestTaskContext_CancelBeforeExecute(t *testing.T) {
	var gotNetworkCall bool
	var result client.Result[string]

	tc := task.NewTaskContext[string](
		func(ctx *task.CancellationContext) client.Result[string] {
			gotNetworkCall = true
			return client.Ok("should not happen")
		},
		func(r client.Result[string]) { result = r },
	)

	ok := tc.BlockingCancel(time.Second)
	assert.True(t, ok)

	tc.Execute()

	require.False(t, gotNetworkCall)
	require.NotNil(t, result.Err)
	assert.Equal(t, client.KindCancelled, result.Err.Kind)
}

func TestTaskContext_TimeoutWinsOverCancel(t *testing.T) {
	var result client.Result[string]
	started := make(chan struct{})
	release := make(chan struct{})

	tc := task.NewTaskContext[string](
		func(ctx *task.CancellationContext) client.Result[string] {
			close(started)
			<-release
			return client.Failed[string](client.ErrorFromHTTPStatus(408, "timed out"))
		},
		func(r client.Result[string]) { result = r },
	)

	go tc.Execute()
	<-started

	done := make(chan struct{})
	go func() {
		tc.BlockingCancel(time.Second)
		close(done)
	}()

	close(release)
	<-done

	require.NotNil(t, result.Err)
	assert.Equal(t, client.KindTimeout, result.Err.Kind)
}

func TestTaskContext_BlockingCancelAlreadyCompleted(t *testing.T) {
	tc := task.NewTaskContext[int](
		func(ctx *task.CancellationContext) client.Result[int] { return client.Ok(1) },
		func(r client.Result[int]) {},
	)
	tc.Execute()
	assert.True(t, tc.BlockingCancel(0))
}
