// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read

import (
	"context"
	"strconv"
	"strings"

	"github.com/heremaps/here-data-sdk-go/internal/task"
	"github.com/heremaps/here-data-sdk-go/pkg/broker"
	"github.com/heremaps/here-data-sdk-go/pkg/client"
	"github.com/heremaps/here-data-sdk-go/pkg/continuation"
)

// DataCallback receives an asynchronous GetData outcome.
type DataCallback func(client.Result[[]byte])

// GetDataAsync is the asynchronous, coalescing form of GetData: the
// request runs as a continuation chain on sched, and concurrent calls
// for a semantically equivalent request on the same client attach to
// the one in-flight operation instead of duplicating its partition
// and blob fetches. The returned token cancels only this caller; the
// shared operation is cancelled once no callers remain attached.
func (c *LayerClient) GetDataAsync(ctx context.Context, req DataRequest, sched Scheduler, cb DataCallback) task.CancellationToken {
	key := c.requestKey(req)

	assoc := c.requests.CreateOrAssociate(key, func(resp any) {
		switch r := resp.(type) {
		case client.Result[[]byte]:
			cb(r)
		case broker.Cancelled:
			cb(client.Failed[[]byte](client.Cancelled()))
		default:
			cb(client.Failed[[]byte](client.NewError(client.KindUnknown, "unexpected broker response")))
		}
	})
	if !assoc.JustCreated {
		return assoc.CancelToken
	}

	requests := c.requests
	assoc.CancelCtx.ExecuteOrCancelled(func() task.CancellationToken {
		ch := continuation.Start(sched, req)
		ch = continuation.Then(ch, func(_ *task.CancellationContext, in DataRequest) (string, *client.ApiError) {
			return c.resolveDataHandle(ctx, in)
		})
		ch = continuation.Then(ch, func(_ *task.CancellationContext, handle string) ([]byte, *client.ApiError) {
			r := c.blobs.GetBlob(ctx, c.layer, handle, BlobRange{})
			if !r.IsSuccess() {
				return nil, r.Err
			}
			return r.Value, nil
		})
		continuation.Finally(ch, func(r client.Result[[]byte]) {
			requests.CompleteRequest(key, r)
		})
		ch.Run()
		return ch.CancelToken()
	}, func() {
		requests.CompleteRequest(key, client.Failed[[]byte](client.Cancelled()))
	})

	return assoc.CancelToken
}

// requestKey identifies a semantically equivalent GetData call on
// this client: same catalog, layer, addressing mode, and version.
func (c *LayerClient) requestKey(req DataRequest) broker.RequestKey {
	parts := []string{c.settings.CatalogHRN, c.layer, "data", req.PartitionID, req.DataHandle}
	if req.TileKey != nil {
		parts = append(parts, req.TileKey.ToHereTile(), strconv.Itoa(req.Depth))
	}
	if v := c.version(req.Version); v != nil {
		parts = append(parts, strconv.FormatInt(*v, 10))
	}
	return broker.RequestKey(strings.Join(parts, "::"))
}
