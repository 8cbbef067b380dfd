// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read

import (
	"context"
	"strconv"

	"github.com/heremaps/here-data-sdk-go/pkg/cache"
	"github.com/heremaps/here-data-sdk-go/pkg/client"
	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
)

// BlobRepository implements the blob repository (component N):
// cache-first byte retrieval from the blob/volatile-blob API.
type BlobRepository struct {
	settings Settings
	http     *olpclient.OlpClient
	// apiName is "blob" for versioned layers, "volatile-blob" for
	// volatile ones; the endpoint name is the only difference between
	// the two layer kinds (spec §4.15).
	apiName string
}

// NewBlobRepository builds a BlobRepository serving apiName ("blob"
// or "volatile-blob").
func NewBlobRepository(settings Settings, apiName string) *BlobRepository {
	return &BlobRepository{settings: settings, http: settings.httpClient(), apiName: apiName}
}

// GetBlob fetches the bytes for dataHandle, cache-first. A non-zero
// blobRange bypasses the cache entirely: the byte range is requested
// with a Range header and returned fully buffered, not streamed, and
// it is not written to the cache.
func (b *BlobRepository) GetBlob(ctx context.Context, layer, dataHandle string, blobRange BlobRange) (result client.Result[[]byte]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	key := cache.DataBlobKey(b.settings.CatalogHRN, layer, dataHandle)

	if !blobRange.HasRange() {
		if raw, found := b.settings.Cache.Get(ctx, key); found {
			return client.Ok(raw)
		}
	}

	ep := b.settings.Lookup.LookupAPI(ctx, b.settings.CatalogHRN, b.apiName, b.settings.apiVersion())
	if !ep.IsSuccess() {
		err = ep.Err
		return client.Failed[[]byte](ep.Err)
	}

	req := olpclient.ApiRequest{
		BaseURL: ep.Value.BaseURL,
		Path:    "/" + b.apiName + "/v1/catalogs/" + b.settings.CatalogHRN + "/layers/" + layer + "/data/" + dataHandle,
		Method:  olpclient.GET,
	}
	if blobRange.HasRange() {
		req.Headers = map[string]string{"Range": rangeHeader(blobRange)}
	}

	resp, callErr := b.http.CallApi(ctx, req)
	if callErr != nil {
		err = callErr
		return client.Failed[[]byte](networkErr(ctx, callErr))
	}
	if apiErr := statusError(resp.Status); apiErr != nil {
		return client.Failed[[]byte](apiErr)
	}

	if !blobRange.HasRange() {
		_, _ = b.settings.Cache.Put(ctx, key, resp.Body, expiryFromTTL(b.settings.LayerTTL))
	}

	return client.Ok(resp.Body)
}

func rangeHeader(r BlobRange) string {
	if r.Length < 0 {
		return "bytes=" + strconv.FormatInt(r.Offset, 10) + "-"
	}
	return "bytes=" + strconv.FormatInt(r.Offset, 10) + "-" + strconv.FormatInt(r.Offset+r.Length-1, 10)
}
