// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read

import (
	"context"
	"sync"

	"github.com/zeebo/errs"
	"golang.org/x/sync/errgroup"

	"github.com/heremaps/here-data-sdk-go/internal/task"
	"github.com/heremaps/here-data-sdk-go/pkg/cache"
	"github.com/heremaps/here-data-sdk-go/pkg/client"
)

// Scheduler is the slice of internal/task/scheduler.Scheduler the
// prefetch engine needs: somewhere to submit per-tile fetch tasks.
type Scheduler interface {
	ScheduleTask(fn func(), priority task.Priority)
}

// PrefetchRequest describes a tile-based prefetch: every tile
// reachable from roots between minLevel and maxLevel (inclusive) is
// resolved and, if not already cached, fetched.
type PrefetchRequest struct {
	Layer      string
	Roots      []TileKey
	MinLevel   int
	MaxLevel   int
	Version    *int64
	BillingTag string
}

// TileResult is the per-tile outcome of a prefetch.
type TileResult struct {
	TileKey    TileKey
	DataHandle string
	Cached     bool
	Err        *client.ApiError
}

// PrefetchResult is the aggregate outcome of a prefetch operation.
type PrefetchResult struct {
	Tiles  []TileResult
	Errors errs.Group
}

// PrefetchCallback receives the aggregate outcome once every child
// fetch has reported, or a Cancelled result if the returned token
// fired first.
type PrefetchCallback func(client.Result[PrefetchResult])

type prefetchTarget struct {
	tile       TileKey
	dataHandle string
}

// Prefetch resolves every quadtree needed to cover req, then submits
// one scheduler task per tile to fetch (and cache) its blob if it is
// not already cached. It returns immediately with a CancellationToken
// that fans out to every in-flight child; cb is invoked exactly once,
// asynchronously, with the aggregate result (spec §4.16). Tiles with
// no data-handle in their quadtree are skipped, not errors.
func (c *LayerClient) Prefetch(ctx context.Context, req PrefetchRequest, sched Scheduler, cb PrefetchCallback) task.CancellationToken {
	version := c.version(req.Version)

	depth := req.MaxLevel - req.MinLevel
	if depth < 0 {
		depth = 0
	}

	cancelCtx := task.NewCancellationContext()
	token := task.NewCancellationToken(cancelCtx.CancelOperation)

	go func() {
		// One quadtree GET per unique (root, depth); duplicated roots
		// coalesce here rather than hitting the metadata API twice.
		roots := make([]TileKey, 0, len(req.Roots))
		seen := make(map[TileKey]struct{}, len(req.Roots))
		for _, root := range req.Roots {
			if _, dup := seen[root]; dup {
				continue
			}
			seen[root] = struct{}{}
			roots = append(roots, root)
		}

		var targets []prefetchTarget
		g, gctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		for _, root := range roots {
			root := root
			g.Go(func() error {
				idx := c.partitions.GetQuadTree(gctx, c.layer, root, depth, version)
				if !idx.IsSuccess() {
					return idx.Err
				}
				mu.Lock()
				for _, e := range idx.Value.SubQuads {
					if e.DataHandle == "" {
						continue // no data handle: skipped, not an error
					}
					targets = append(targets, prefetchTarget{
						tile:       root.AddedSubHereTile(e.SubQuadKey),
						dataHandle: e.DataHandle,
					})
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			cb(client.Failed[PrefetchResult](asApiError(err)))
			return
		}
		if cancelCtx.IsCancelled() {
			cb(client.Failed[PrefetchResult](client.Cancelled()))
			return
		}

		c.runPrefetchFanOut(ctx, targets, sched, cancelCtx, cb)
	}()

	return token
}

// PrefetchPartitions is the same algorithm as Prefetch, but driven by
// an explicit list of partition IDs rather than a tile range: each ID
// is resolved to a data handle via the partitions repository, then
// fetched (if not already cached) the same way.
func (c *LayerClient) PrefetchPartitions(ctx context.Context, partitionIds []string, version *int64, billingTag string, sched Scheduler, cb PrefetchCallback) task.CancellationToken {
	v := c.version(version)

	cancelCtx := task.NewCancellationContext()
	token := task.NewCancellationToken(cancelCtx.CancelOperation)

	go func() {
		parts := c.partitions.GetPartitionsById(ctx, c.layer, v, partitionIds, billingTag)
		if !parts.IsSuccess() {
			cb(client.Failed[PrefetchResult](parts.Err))
			return
		}
		if cancelCtx.IsCancelled() {
			cb(client.Failed[PrefetchResult](client.Cancelled()))
			return
		}

		targets := make([]prefetchTarget, 0, len(parts.Value.Partitions))
		for _, p := range parts.Value.Partitions {
			targets = append(targets, prefetchTarget{dataHandle: p.DataHandle})
		}

		c.runPrefetchFanOut(ctx, targets, sched, cancelCtx, cb)
	}()

	return token
}

// runPrefetchFanOut submits one scheduler task per target, each
// reporting into a shared aggregator, and invokes cb once every task
// has reported or cancelCtx cancels the remaining ones.
func (c *LayerClient) runPrefetchFanOut(ctx context.Context, targets []prefetchTarget, sched Scheduler, cancelCtx *task.CancellationContext, cb PrefetchCallback) {
	var (
		mu        sync.Mutex
		remaining = len(targets)
		results   []TileResult
	)

	// Children run under fanCtx, registered with cancelCtx, so a cancel
	// also aborts fetches already in flight, not only queued ones.
	fanCtx, cancelFan := context.WithCancel(ctx)
	cancelCtx.ExecuteOrCancelled(func() task.CancellationToken {
		return task.NewCancellationToken(cancelFan)
	}, cancelFan)

	report := func() {
		cancelFan()
		mu.Lock()
		finalResults := results
		cancelled := cancelCtx.IsCancelled()
		mu.Unlock()

		if cancelled {
			cb(client.Failed[PrefetchResult](client.Cancelled()))
			return
		}

		var errGroup errs.Group
		for _, r := range finalResults {
			if r.Err != nil {
				errGroup.Add(r.Err)
			}
		}
		cb(client.Ok(PrefetchResult{Tiles: finalResults, Errors: errGroup}))
	}

	if remaining == 0 {
		report()
		return
	}

	for _, target := range targets {
		target := target
		sched.ScheduleTask(func() {
			result := c.prefetchOne(fanCtx, target.tile, target.dataHandle, cancelCtx)
			mu.Lock()
			results = append(results, result)
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				report()
			}
		}, task.PriorityNormal)
	}
}

func (c *LayerClient) prefetchOne(ctx context.Context, tile TileKey, dataHandle string, cancelCtx *task.CancellationContext) TileResult {
	if cancelCtx.IsCancelled() {
		return TileResult{TileKey: tile, DataHandle: dataHandle, Err: client.Cancelled()}
	}

	key := cache.DataBlobKey(c.settings.CatalogHRN, c.layer, dataHandle)
	if c.settings.Cache.Contains(ctx, key) {
		return TileResult{TileKey: tile, DataHandle: dataHandle, Cached: true}
	}

	result := c.blobs.GetBlob(ctx, c.layer, dataHandle, BlobRange{})
	if !result.IsSuccess() {
		return TileResult{TileKey: tile, DataHandle: dataHandle, Err: result.Err}
	}
	return TileResult{TileKey: tile, DataHandle: dataHandle, Cached: true}
}

func asApiError(err error) *client.ApiError {
	if apiErr, ok := err.(*client.ApiError); ok {
		return apiErr
	}
	return client.NewError(client.KindUnknown, err.Error())
}
