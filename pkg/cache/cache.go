// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package cache implements the two-tier key/value cache (component E):
// an in-memory LRU fronting a size-bounded on-disk envelope, with a
// protected-key mechanism that pins entries against size eviction.
package cache

import (
	"context"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/heremaps/here-data-sdk-go/private/kvstore"
)

// Error is the class for cache failures.
var Error = errs.Class("cache")

// Options configures a Cache.
type Options struct {
	MemoryCapacityBytes int64
	DiskCapacityBytes   int64
	Logger              *zap.Logger
}

// Cache is the two-tier key/value cache described in spec §4.5.
// Every operation is atomic with respect to a single key; a
// successful Put is visible to a subsequent Get/Contains from any
// goroutine.
type Cache struct {
	memory    *ExpiringLRU
	disk      *diskEnvelope
	protected *ProtectedKeyList
	logger    *zap.Logger
}

// New builds a Cache over disk, the on-disk kvstore.Store backend.
func New(ctx context.Context, disk kvstore.Store, opts Options) (*Cache, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	protected := NewProtectedKeyList()
	if raw, err := disk.Get(ctx, []byte(ProtectedKeyReservedKey)); err == nil {
		protected = Unmarshal(raw)
	}

	envelope, err := newDiskEnvelope(ctx, disk, opts.DiskCapacityBytes, protected.IsProtected)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	c := &Cache{
		memory:    NewExpiringLRU(opts.MemoryCapacityBytes, protected.IsProtected),
		disk:      envelope,
		protected: protected,
		logger:    opts.Logger,
	}
	return c, nil
}

// Put stores raw bytes under key with the given absolute expiry
// (epoch seconds; use NeverExpire for "no expiry"). It returns false
// if the disk tier's size cap could not be satisfied even after
// evicting every unprotected entry (spec §9 open question: Put fails
// rather than evicting a protected key).
func (c *Cache) Put(ctx context.Context, key string, value []byte, expiry int64) (bool, error) {
	ok, err := c.disk.Put(ctx, key, value, expiry)
	if err != nil {
		return false, Error.Wrap(err)
	}
	if !ok {
		return false, nil
	}
	c.memory.Put(key, value, expiry)
	c.persistProtectedIfDirty(ctx)
	return true, nil
}

// Get returns the bytes stored under key, or (nil, false) on a miss
// or expiry. A memory hit short-circuits the disk tier; a disk hit
// promotes the value into the memory tier.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.memory.Get(key); ok {
		return v, true
	}
	if v, expiry, ok := c.disk.Get(ctx, key); ok {
		c.memory.Put(key, v, expiry)
		return v, true
	}
	return nil, false
}

// Contains reports whether key has a live entry in either tier.
func (c *Cache) Contains(ctx context.Context, key string) bool {
	if c.memory.Contains(key) {
		return true
	}
	_, _, ok := c.disk.Get(ctx, key)
	return ok
}

// Remove deletes key from both tiers, reporting whether it was
// present in either.
func (c *Cache) Remove(ctx context.Context, key string) bool {
	removedMemory := c.memory.Remove(key)
	removedDisk := c.disk.Remove(ctx, key)
	return removedMemory || removedDisk
}

// RemoveKeysWithPrefix deletes every key beginning with prefix from
// both tiers.
func (c *Cache) RemoveKeysWithPrefix(ctx context.Context, prefix string) error {
	c.memory.RemoveKeysWithPrefix(prefix)
	return Error.Wrap(c.disk.RemoveKeysWithPrefix(ctx, prefix))
}

// Promote moves key to the MRU position of the memory tier.
func (c *Cache) Promote(key string) {
	c.memory.Promote(key)
}

// Protect pins keys against size-driven eviction.
func (c *Cache) Protect(ctx context.Context, keys ...ProtectedKey) {
	c.protected.Add(keys...)
	c.persistProtectedIfDirty(ctx)
}

// Release un-pins keys previously protected.
func (c *Cache) Release(ctx context.Context, keys ...ProtectedKey) {
	c.protected.Remove(keys...)
	c.persistProtectedIfDirty(ctx)
}

func (c *Cache) persistProtectedIfDirty(ctx context.Context) {
	if !c.protected.Dirty() {
		return
	}
	data := c.protected.Marshal()
	if _, err := c.disk.Put(ctx, ProtectedKeyReservedKey, data, NeverExpire); err != nil {
		c.logger.Warn("failed to persist protected key list", zap.Error(err))
	}
}

// PutValue encodes v with encode and stores the result under key,
// the capability-based form spec §4.5 names as
// `put(key, value, encoder, expiry)`; (de)serialization is an
// external collaborator (spec §1), so encode/decode are supplied by
// the caller.
func PutValue[T any](ctx context.Context, c *Cache, key string, v T, encode func(T) ([]byte, error), expiry int64) (bool, error) {
	raw, err := encode(v)
	if err != nil {
		return false, Error.Wrap(err)
	}
	return c.Put(ctx, key, raw, expiry)
}

// GetValue decodes the bytes stored under key with decode, the
// capability-based form of `get(key, decoder)`.
func GetValue[T any](ctx context.Context, c *Cache, key string, decode func([]byte) (T, error)) (T, bool) {
	var zero T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return zero, false
	}
	v, err := decode(raw)
	if err != nil {
		return zero, false
	}
	return v, true
}
