// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heremaps/here-data-sdk-go/pkg/read"
)

func TestLayerClient_GetData_ByPartitionId(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/partitions"):
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"partitions":[{"partition":"p1","dataHandle":"dh1","version":1}]}`))
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("partition bytes"))
		}
	}))
	defer srv.Close()

	c := read.NewVersionedLayerClient(newTestSettings(t, srv, "query", "blob"), "layer")

	r := c.GetData(context.Background(), read.DataRequest{PartitionID: "p1", Version: int64Ptr(1)}, read.BlobRange{})
	require.True(t, r.IsSuccess())
	assert.Equal(t, []byte("partition bytes"), r.Value)
}

func TestLayerClient_GetData_ByDataHandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("direct bytes"))
	}))
	defer srv.Close()

	c := read.NewVersionedLayerClient(newTestSettings(t, srv, "blob"), "layer")

	r := c.GetData(context.Background(), read.DataRequest{DataHandle: "dh1"}, read.BlobRange{})
	require.True(t, r.IsSuccess())
	assert.Equal(t, []byte("direct bytes"), r.Value)
}

func TestLayerClient_GetData_ByTileKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/quadkeys/"):
			assert.Contains(t, r.URL.Path, "/quadkeys/4/")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"subQuads":[{"subQuadKey":"1","dataHandle":"dh-tile","version":1}]}`))
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("tile bytes"))
		}
	}))
	defer srv.Close()

	c := read.NewVersionedLayerClient(newTestSettings(t, srv, "metadata", "blob"), "layer")

	tile, err := read.TileKeyFromHereTile("4")
	require.NoError(t, err)
	r := c.GetData(context.Background(), read.DataRequest{TileKey: &tile, Depth: 2, Version: int64Ptr(1)}, read.BlobRange{})
	require.True(t, r.IsSuccess())
	assert.Equal(t, []byte("tile bytes"), r.Value)
}

func TestVolatileLayerClient_IgnoresVersion(t *testing.T) {
	var gotVersionParam string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersionParam = r.URL.Query().Get("version")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"partitions":[{"partition":"p1","dataHandle":"dh1"}]}`))
	}))
	defer srv.Close()

	c := read.NewVolatileLayerClient(newTestSettings(t, srv, "query", "volatile-blob"), "layer")

	r := c.GetPartitions(context.Background(), []string{"p1"}, int64Ptr(7), "")
	require.True(t, r.IsSuccess())
	assert.Empty(t, gotVersionParam)
}

func TestLayerClient_RemoveFromCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"partitions":[{"partition":"p1","dataHandle":"dh1","version":1}]}`))
	}))
	defer srv.Close()

	c := read.NewVersionedLayerClient(newTestSettings(t, srv, "query"), "layer")

	r := c.GetPartitions(context.Background(), []string{"p1"}, int64Ptr(1), "")
	require.True(t, r.IsSuccess())

	assert.NotPanics(t, func() {
		c.RemoveFromCache(context.Background(), "p1", int64Ptr(1))
	})
}

func TestLayerClient_ProtectRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"partitions":[{"partition":"p1","dataHandle":"dh1","version":1}]}`))
	}))
	defer srv.Close()

	c := read.NewVersionedLayerClient(newTestSettings(t, srv, "query"), "layer")

	r := c.GetPartitions(context.Background(), []string{"p1"}, int64Ptr(1), "")
	require.True(t, r.IsSuccess())

	assert.NotPanics(t, func() {
		c.Protect(context.Background(), []string{"p1"}, int64Ptr(1))
		c.Release(context.Background(), []string{"p1"}, int64Ptr(1))
	})
}
