// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package task_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heremaps/here-data-sdk-go/internal/task"
)

func TestPriorityQueueExtended_FIFOWithinPriority(t *testing.T) {
	q := task.NewPriorityQueueExtended[string]()
	q.Push("a", task.PriorityNormal)
	q.Push("b", task.PriorityNormal)
	q.Push("c", task.PriorityNormal)

	for _, want := range []string{"a", "b", "c"} {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestPriorityQueueExtended_HighBeforeLow(t *testing.T) {
	q := task.NewPriorityQueueExtended[string]()
	q.Push("low1", task.PriorityLow)
	q.Push("normal1", task.PriorityNormal)
	q.Push("high1", task.PriorityHigh)
	q.Push("normal2", task.PriorityNormal)
	q.Push("high2", task.PriorityHigh)

	var order []string
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, v)
	}

	assert.Equal(t, []string{"high1", "high2", "normal1", "normal2", "low1"}, order)
}

func TestPriorityQueueExtended_EmptyPop(t *testing.T) {
	q := task.NewPriorityQueueExtended[int]()
	_, ok := q.Pop()
	assert.False(t, ok)
}
