// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package kvstore defines the minimal byte-string key/value store
// interface the disk tier of the cache (component E) is built on.
// Concrete backends (bbolt, in-memory, ...) implement Store; the core
// never depends on a specific engine directly (spec §1: the core
// consumes a KeyValueCache capability).
package kvstore

import (
	"context"
	"sort"

	"github.com/zeebo/errs"
)

// Error is the class for kvstore backend failures.
var Error = errs.Class("kvstore")

// ErrKeyNotFound is returned by Get when key has no value.
var ErrKeyNotFound = Error.New("key not found")

// Key and Value are the store's unit of storage; both are arbitrary
// byte strings, never escaped or interpreted by the store itself.
type Key = []byte

// Value is an arbitrary byte string.
type Value = []byte

// Item is a single key/value pair, used by Range and test fixtures.
type Item struct {
	Key   Key
	Value Value
}

// Items is a sortable list of Item, ordered by Key.
type Items []Item

func (it Items) Len() int           { return len(it) }
func (it Items) Less(i, j int) bool { return string(it[i].Key) < string(it[j].Key) }
func (it Items) Swap(i, j int)      { it[i], it[j] = it[j], it[i] }

// CloneItems returns a deep copy of items, safe to mutate or sort
// independently of the original slice.
func CloneItems(items Items) Items {
	out := make(Items, len(items))
	for i, it := range items {
		out[i] = Item{
			Key:   append(Key{}, it.Key...),
			Value: append(Value{}, it.Value...),
		}
	}
	return out
}

// Store is a key/value store keyed by arbitrary byte strings.
// Implementations must make Put visible to a subsequent Get/Range from
// any goroutine (spec §4.5 cache round-trip invariant).
type Store interface {
	// Put stores value under key, replacing any existing value.
	Put(ctx context.Context, key Key, value Value) error
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key Key) (Value, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
	// DeletePrefix removes every key beginning with prefix.
	DeletePrefix(ctx context.Context, prefix Key) error
	// Range calls fn for every stored item, in unspecified order,
	// stopping and returning fn's error if it returns non-nil.
	Range(ctx context.Context, fn func(ctx context.Context, key Key, value Value) error) error
	// Close releases any resources held by the store.
	Close() error
}

// PutAll stores every item in items, stopping at the first error.
func PutAll(ctx context.Context, store Store, items ...Item) error {
	for _, it := range items {
		if err := store.Put(ctx, it.Key, it.Value); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns every key currently in store, sorted.
func Keys(ctx context.Context, store Store) ([]string, error) {
	var keys []string
	err := store.Range(ctx, func(_ context.Context, key Key, _ Value) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
