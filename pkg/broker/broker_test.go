// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package broker_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heremaps/here-data-sdk-go/pkg/broker"
)

func TestBroker_FirstCallerCreates(t *testing.T) {
	b := broker.New()
	a := b.CreateOrAssociate("k", func(any) {})
	assert.True(t, a.JustCreated)
	assert.Equal(t, 1, b.CallerCount("k"))
}

func TestBroker_SecondCallerAssociates(t *testing.T) {
	b := broker.New()
	a1 := b.CreateOrAssociate("k", func(any) {})
	a2 := b.CreateOrAssociate("k", func(any) {})

	assert.True(t, a1.JustCreated)
	assert.False(t, a2.JustCreated)
	assert.NotEqual(t, a1.CallerID, a2.CallerID)
	assert.Equal(t, 2, b.CallerCount("k"))
}

func TestBroker_CompleteRequestDispatchesToAllCallers(t *testing.T) {
	b := broker.New()

	var mu sync.Mutex
	var received []any

	b.CreateOrAssociate("k", func(r any) {
		mu.Lock()
		received = append(received, r)
		mu.Unlock()
	})
	b.CreateOrAssociate("k", func(r any) {
		mu.Lock()
		received = append(received, r)
		mu.Unlock()
	})

	b.CompleteRequest("k", "done")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "done", received[0])
	assert.Equal(t, "done", received[1])
	assert.Equal(t, 0, b.CallerCount("k"))
}

func TestBroker_CancelOneCallerLeavesOthersRunning(t *testing.T) {
	b := broker.New()

	var cancelledCalls int
	a1 := b.CreateOrAssociate("k", func(r any) {
		if _, ok := r.(broker.Cancelled); ok {
			cancelledCalls++
		}
	})
	b.CreateOrAssociate("k", func(any) {})

	a1.CancelToken.Cancel()

	assert.Equal(t, 1, cancelledCalls)
	assert.Equal(t, 1, b.CallerCount("k"))
	assert.False(t, a1.CancelCtx.IsCancelled())
}

func TestBroker_CancelLastCallerCancelsOperation(t *testing.T) {
	b := broker.New()

	a := b.CreateOrAssociate("k", func(any) {})
	a.CancelToken.Cancel()

	assert.Equal(t, 0, b.CallerCount("k"))
	assert.True(t, a.CancelCtx.IsCancelled())
}

func TestBroker_CancelTokenIsIdempotent(t *testing.T) {
	b := broker.New()
	a := b.CreateOrAssociate("k", func(any) {})

	a.CancelToken.Cancel()
	assert.NotPanics(t, func() { a.CancelToken.Cancel() })
}
