// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/heremaps/here-data-sdk-go/pkg/cache"
	"github.com/heremaps/here-data-sdk-go/pkg/client"
	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
)

// maxPartitionsPerRequest bounds how many cache-miss partition IDs
// are batched into a single query-API request (spec §4.13).
const maxPartitionsPerRequest = 100

// PartitionsRepository implements the partitions repository
// (component M), unifying object-partitioned and tile-partitioned
// layer lookups behind cache-first resolution. It does not know which
// kind of layer it is serving; the layer client picks the operation.
type PartitionsRepository struct {
	settings Settings
	http     *olpclient.OlpClient
	api      string // "query" or "metadata", resolved per call
}

// NewPartitionsRepository builds a PartitionsRepository.
func NewPartitionsRepository(settings Settings) *PartitionsRepository {
	return &PartitionsRepository{settings: settings, http: settings.httpClient()}
}

// GetPartitionsById resolves partitionIds for layer, cache-first, and
// batches cache-miss IDs into requests of at most
// maxPartitionsPerRequest against the query API. version, if nil,
// omits the version constraint (volatile layers).
func (r *PartitionsRepository) GetPartitionsById(ctx context.Context, layer string, version *int64, partitionIds []string, billingTag string) (result client.Result[Partitions]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	out := make([]Partition, 0, len(partitionIds))
	var missing []string

	for _, id := range partitionIds {
		key := cache.PartitionKey(r.settings.CatalogHRN, layer, id, version)
		if raw, found := r.settings.Cache.Get(ctx, key); found {
			var p Partition
			if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
				out = append(out, p)
				continue
			}
		}
		missing = append(missing, id)
	}

	ep := r.settings.Lookup.LookupAPI(ctx, r.settings.CatalogHRN, "query", r.settings.apiVersion())
	for len(missing) > 0 {
		batch := missing
		if len(batch) > maxPartitionsPerRequest {
			batch = batch[:maxPartitionsPerRequest]
		}
		missing = missing[len(batch):]

		if !ep.IsSuccess() {
			err = ep.Err
			return client.Failed[Partitions](ep.Err)
		}

		fetched, fetchErr := r.fetchPartitions(ctx, ep.Value.BaseURL, layer, version, batch, billingTag)
		if fetchErr != nil {
			err = fetchErr
			return client.Failed[Partitions](fetchErr)
		}
		for _, p := range fetched {
			key := cache.PartitionKey(r.settings.CatalogHRN, layer, p.PartitionID, version)
			if encoded, jsonErr := json.Marshal(p); jsonErr == nil {
				_, _ = r.settings.Cache.Put(ctx, key, encoded, expiryFromTTL(r.settings.LayerTTL))
			}
		}
		out = append(out, fetched...)
	}

	return client.Ok(Partitions{Partitions: out})
}

func (r *PartitionsRepository) fetchPartitions(ctx context.Context, baseURL, layer string, version *int64, ids []string, billingTag string) ([]Partition, *client.ApiError) {
	params := billingTagParam(billingTag)
	params["partition"] = strings.Join(ids, ",")
	if version != nil {
		params["version"] = strconv.FormatInt(*version, 10)
	}

	resp, callErr := r.http.CallApi(ctx, olpclient.ApiRequest{
		BaseURL:     baseURL,
		Path:        "/query/v1/catalogs/" + r.settings.CatalogHRN + "/layers/" + layer + "/partitions",
		Method:      olpclient.GET,
		QueryParams: params,
	})
	if callErr != nil {
		return nil, networkErr(ctx, callErr)
	}
	if apiErr := statusError(resp.Status); apiErr != nil {
		return nil, apiErr
	}

	var parsed Partitions
	if jsonErr := json.Unmarshal(resp.Body, &parsed); jsonErr != nil {
		return nil, parseErr(jsonErr)
	}
	return parsed.Partitions, nil
}

// GetQuadTree resolves the quadtree rooted at rootTile to the given
// depth, cache-first. On a fetch, every child's data-handle entry is
// written to the cache under its own partition key so a subsequent
// per-tile GetPartitionsById-style lookup is a cache hit without a
// further quadtree lookup (spec §8 property 9).
func (r *PartitionsRepository) GetQuadTree(ctx context.Context, layer string, rootTile TileKey, depth int, version *int64) (result client.Result[QuadTreeIndex]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	key := cache.QuadTreeKey(r.settings.CatalogHRN, layer, rootTile.ToHereTile(), version, depth)

	if raw, found := r.settings.Cache.Get(ctx, key); found {
		var idx QuadTreeIndex
		if jsonErr := json.Unmarshal(raw, &idx); jsonErr == nil {
			return client.Ok(idx)
		}
	}

	ep := r.settings.Lookup.LookupAPI(ctx, r.settings.CatalogHRN, "metadata", r.settings.apiVersion())
	if !ep.IsSuccess() {
		err = ep.Err
		return client.Failed[QuadTreeIndex](ep.Err)
	}

	v := int64(0)
	if version != nil {
		v = *version
	}
	resp, callErr := r.http.CallApi(ctx, olpclient.ApiRequest{
		BaseURL: ep.Value.BaseURL,
		Path: "/metadata/v1/catalogs/" + r.settings.CatalogHRN + "/layers/" + layer +
			"/versions/" + strconv.FormatInt(v, 10) +
			"/quadkeys/" + rootTile.ToHereTile() + "/depths/" + strconv.Itoa(depth),
		Method: olpclient.GET,
	})
	if callErr != nil {
		err = callErr
		return client.Failed[QuadTreeIndex](networkErr(ctx, callErr))
	}
	if apiErr := statusError(resp.Status); apiErr != nil {
		return client.Failed[QuadTreeIndex](apiErr)
	}

	var idx QuadTreeIndex
	if jsonErr := json.Unmarshal(resp.Body, &idx); jsonErr != nil {
		err = jsonErr
		return client.Failed[QuadTreeIndex](parseErr(jsonErr))
	}

	if encoded, jsonErr := json.Marshal(idx); jsonErr == nil {
		_, _ = r.settings.Cache.Put(ctx, key, encoded, expiryFromTTL(r.settings.LayerTTL))
	}
	for _, entry := range idx.SubQuads {
		// subQuadKeys are relative to the requested root; the
		// partition id for a tile-partitioned layer is the absolute
		// here-tile string.
		tile := rootTile.AddedSubHereTile(entry.SubQuadKey).ToHereTile()
		pkey := cache.PartitionKey(r.settings.CatalogHRN, layer, tile, version)
		p := Partition{PartitionID: tile, DataHandle: entry.DataHandle, Version: entry.Version}
		if encoded, jsonErr := json.Marshal(p); jsonErr == nil {
			_, _ = r.settings.Cache.Put(ctx, pkey, encoded, expiryFromTTL(r.settings.LayerTTL))
		}
	}

	return client.Ok(idx)
}
