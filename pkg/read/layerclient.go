// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read

import (
	"context"
	"encoding/json"

	"github.com/heremaps/here-data-sdk-go/pkg/broker"
	"github.com/heremaps/here-data-sdk-go/pkg/cache"
	"github.com/heremaps/here-data-sdk-go/pkg/client"
)

// DataRequest selects how GetData resolves a partition's bytes.
// Exactly one addressing mode should be populated; DataHandle takes
// precedence over TileKey, which takes precedence over PartitionID.
type DataRequest struct {
	PartitionID string
	DataHandle  string
	TileKey     *TileKey
	Depth       int
	Version     *int64
	BillingTag  string
}

// LayerClient exposes the user-level verbs shared by versioned and
// volatile layers (component O). The two kinds differ only in the
// blob endpoint name and in whether a version is threaded through
// cache keys (volatile layers have none); Volatile forces Version to
// nil on every call regardless of what the caller passes.
type LayerClient struct {
	settings   Settings
	layer      string
	partitions *PartitionsRepository
	blobs      *BlobRepository
	requests   *broker.Broker
	volatile   bool
}

// NewVersionedLayerClient builds a LayerClient against the "blob" API.
func NewVersionedLayerClient(settings Settings, layer string) *LayerClient {
	return &LayerClient{
		settings:   settings,
		layer:      layer,
		partitions: NewPartitionsRepository(settings),
		blobs:      NewBlobRepository(settings, "blob"),
		requests:   broker.New(),
	}
}

// NewVolatileLayerClient builds a LayerClient against the
// "volatile-blob" API; partition and data-handle cache keys never
// carry a version component.
func NewVolatileLayerClient(settings Settings, layer string) *LayerClient {
	return &LayerClient{
		settings:   settings,
		layer:      layer,
		partitions: NewPartitionsRepository(settings),
		blobs:      NewBlobRepository(settings, "volatile-blob"),
		requests:   broker.New(),
		volatile:   true,
	}
}

func (c *LayerClient) version(v *int64) *int64 {
	if c.volatile {
		return nil
	}
	return v
}

// GetData resolves req to its bytes: a direct data-handle fetch, a
// partition-ID lookup followed by a blob fetch, or a tile-key
// (quadtree) lookup followed by a blob fetch.
func (c *LayerClient) GetData(ctx context.Context, req DataRequest, blobRange BlobRange) client.Result[[]byte] {
	handle, apiErr := c.resolveDataHandle(ctx, req)
	if apiErr != nil {
		return client.Failed[[]byte](apiErr)
	}
	return c.blobs.GetBlob(ctx, c.layer, handle, blobRange)
}

// resolveDataHandle turns a DataRequest's addressing mode into the
// data handle its blob lives under.
func (c *LayerClient) resolveDataHandle(ctx context.Context, req DataRequest) (string, *client.ApiError) {
	version := c.version(req.Version)

	if req.DataHandle != "" {
		return req.DataHandle, nil
	}

	if req.TileKey != nil {
		idx := c.partitions.GetQuadTree(ctx, c.layer, *req.TileKey, req.Depth, version)
		if !idx.IsSuccess() {
			return "", idx.Err
		}
		for _, e := range idx.Value.SubQuads {
			if req.TileKey.AddedSubHereTile(e.SubQuadKey) == *req.TileKey && e.DataHandle != "" {
				return e.DataHandle, nil
			}
		}
		return "", client.NewError(client.KindNotFound, "tile has no data handle")
	}

	parts := c.partitions.GetPartitionsById(ctx, c.layer, version, []string{req.PartitionID}, req.BillingTag)
	if !parts.IsSuccess() {
		return "", parts.Err
	}
	if len(parts.Value.Partitions) == 0 {
		return "", client.NewError(client.KindNotFound, "partition not found: "+req.PartitionID)
	}
	return parts.Value.Partitions[0].DataHandle, nil
}

// GetPartitions resolves a batch of partition IDs to their metadata.
func (c *LayerClient) GetPartitions(ctx context.Context, partitionIds []string, version *int64, billingTag string) client.Result[Partitions] {
	return c.partitions.GetPartitionsById(ctx, c.layer, c.version(version), partitionIds, billingTag)
}

// RemoveFromCache evicts every cache entry associated with
// partitionId: its partition-metadata key and, if present, the
// associated data-handle key.
func (c *LayerClient) RemoveFromCache(ctx context.Context, partitionID string, version *int64) {
	key := cache.PartitionKey(c.settings.CatalogHRN, c.layer, partitionID, c.version(version))
	if raw, found := c.settings.Cache.Get(ctx, key); found {
		var p Partition
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil && p.DataHandle != "" {
			c.settings.Cache.Remove(ctx, cache.DataBlobKey(c.settings.CatalogHRN, c.layer, p.DataHandle))
		}
	}
	c.settings.Cache.Remove(ctx, key)
}

// Protect pins the cache entries for partitionIds (and, when cached,
// their associated data-handle entries) against size eviction.
func (c *LayerClient) Protect(ctx context.Context, partitionIds []string, version *int64) {
	keys := c.protectedKeys(ctx, partitionIds, version)
	c.settings.Cache.Protect(ctx, keys...)
}

// Release un-pins the cache entries previously pinned by Protect.
func (c *LayerClient) Release(ctx context.Context, partitionIds []string, version *int64) {
	keys := c.protectedKeys(ctx, partitionIds, version)
	c.settings.Cache.Release(ctx, keys...)
}

func (c *LayerClient) protectedKeys(ctx context.Context, partitionIds []string, version *int64) []cache.ProtectedKey {
	v := c.version(version)
	keys := make([]cache.ProtectedKey, 0, len(partitionIds)*2)
	for _, id := range partitionIds {
		pkey := cache.PartitionKey(c.settings.CatalogHRN, c.layer, id, v)
		keys = append(keys, cache.ProtectedKey{Value: pkey})
		if raw, found := c.settings.Cache.Get(ctx, pkey); found {
			var p Partition
			if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil && p.DataHandle != "" {
				keys = append(keys, cache.ProtectedKey{Value: cache.DataBlobKey(c.settings.CatalogHRN, c.layer, p.DataHandle)})
			}
		}
	}
	return keys
}
