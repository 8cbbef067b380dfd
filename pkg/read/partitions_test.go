// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heremaps/here-data-sdk-go/pkg/read"
)

func TestPartitionsRepository_GetPartitionsById_CacheMissThenHit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"partitions":[{"partition":"1","dataHandle":"dh1","version":1}]}`))
	}))
	defer srv.Close()

	repo := read.NewPartitionsRepository(newTestSettings(t, srv, "query"))

	r1 := repo.GetPartitionsById(context.Background(), "layer", int64Ptr(1), []string{"1"}, "")
	require.True(t, r1.IsSuccess())
	require.Len(t, r1.Value.Partitions, 1)
	assert.Equal(t, "dh1", r1.Value.Partitions[0].DataHandle)

	r2 := repo.GetPartitionsById(context.Background(), "layer", int64Ptr(1), []string{"1"}, "")
	require.True(t, r2.IsSuccess())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPartitionsRepository_GetPartitionsById_BatchesOver100(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"partitions":[]}`))
	}))
	defer srv.Close()

	repo := read.NewPartitionsRepository(newTestSettings(t, srv, "query"))

	ids := make([]string, 150)
	for i := range ids {
		ids[i] = "p" + string(rune('a'+i%26))
	}

	r := repo.GetPartitionsById(context.Background(), "layer", nil, ids, "")
	require.True(t, r.IsSuccess())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPartitionsRepository_GetQuadTree_CachesChildren(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"subQuads":[{"subQuadKey":"1","dataHandle":"dh1","version":1}]}`))
	}))
	defer srv.Close()

	settings := newTestSettings(t, srv, "metadata")
	repo := read.NewPartitionsRepository(settings)

	r1 := repo.GetQuadTree(context.Background(), "layer", read.TileKey{}, 2, int64Ptr(1))
	require.True(t, r1.IsSuccess())
	require.Len(t, r1.Value.SubQuads, 1)

	r2 := repo.GetQuadTree(context.Background(), "layer", read.TileKey{}, 2, int64Ptr(1))
	require.True(t, r2.IsSuccess())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// The quadtree fetch should have also seeded the child's partition
	// key, so a direct partition lookup for it is a cache hit too.
	partRepo := read.NewPartitionsRepository(settings)
	pr := partRepo.GetPartitionsById(context.Background(), "layer", int64Ptr(1), []string{"1"}, "")
	require.True(t, pr.IsSuccess())
	require.Len(t, pr.Value.Partitions, 1)
	assert.Equal(t, "dh1", pr.Value.Partitions[0].DataHandle)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
