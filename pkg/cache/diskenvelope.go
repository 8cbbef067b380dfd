// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package cache

import (
	"container/list"
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/heremaps/here-data-sdk-go/private/kvstore"
)

// diskEnvelope wraps a kvstore.Store with a size cap and per-entry
// TTL, evicting unprotected entries in LRU order when the cap would
// be exceeded (spec §4.5 "size-bounded on-disk envelope"). LRU order
// is tracked in memory, seeded from the backing store at construction
// so this survives process restarts without re-deriving a total size
// from scratch on every Put.
type diskEnvelope struct {
	mu          sync.Mutex
	store       kvstore.Store
	limit       int64
	used        int64
	ll          *list.List
	index       map[string]*list.Element
	isProtected func(string) bool
	nowFn       func() int64
}

type diskLRUEntry struct {
	key  string
	size int64
}

func newDiskEnvelope(ctx context.Context, store kvstore.Store, limit int64, isProtected func(string) bool) (*diskEnvelope, error) {
	if isProtected == nil {
		isProtected = func(string) bool { return false }
	}
	e := &diskEnvelope{
		store:       store,
		limit:       limit,
		ll:          list.New(),
		index:       make(map[string]*list.Element),
		isProtected: isProtected,
		nowFn:       func() int64 { return time.Now().Unix() },
	}

	err := store.Range(ctx, func(_ context.Context, key kvstore.Key, value kvstore.Value) error {
		el := e.ll.PushFront(&diskLRUEntry{key: string(key), size: int64(len(value))})
		e.index[string(key)] = el
		e.used += int64(len(value))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func encodeEntry(expiry int64, value []byte) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiry))
	copy(buf[8:], value)
	return buf
}

func decodeEntry(raw []byte) (expiry int64, value []byte) {
	if len(raw) < 8 {
		return 0, nil
	}
	return int64(binary.BigEndian.Uint64(raw[:8])), raw[8:]
}

// Put stores value under key with the given expiry, evicting
// unprotected LRU victims as needed. Returns false if it still
// doesn't fit after evicting every unprotected entry.
func (e *diskEnvelope) Put(ctx context.Context, key string, value []byte, expiry int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	encoded := encodeEntry(expiry, value)
	size := int64(len(encoded))

	if el, ok := e.index[key]; ok {
		e.used -= el.Value.(*diskLRUEntry).size
		e.ll.Remove(el)
		delete(e.index, key)
	}

	for e.used+size > e.limit && e.ll.Len() > 0 {
		if !e.evictOneUnprotectedLocked(ctx) {
			break
		}
	}

	if e.used+size > e.limit {
		return false, nil
	}

	if err := e.store.Put(ctx, []byte(key), encoded); err != nil {
		return false, err
	}
	el := e.ll.PushFront(&diskLRUEntry{key: key, size: size})
	e.index[key] = el
	e.used += size
	return true, nil
}

func (e *diskEnvelope) evictOneUnprotectedLocked(ctx context.Context) bool {
	for el := e.ll.Back(); el != nil; el = el.Prev() {
		entry := el.Value.(*diskLRUEntry)
		if e.isProtected(entry.key) {
			continue
		}
		_ = e.store.Delete(ctx, []byte(entry.key))
		e.ll.Remove(el)
		delete(e.index, entry.key)
		e.used -= entry.size
		return true
	}
	return false
}

// Get returns the live value for key and its absolute expiry, or
// (nil, 0, false).
func (e *diskEnvelope) Get(ctx context.Context, key string) ([]byte, int64, bool) {
	e.mu.Lock()
	_, ok := e.index[key]
	e.mu.Unlock()
	if !ok {
		return nil, 0, false
	}

	raw, err := e.store.Get(ctx, []byte(key))
	if err != nil {
		return nil, 0, false
	}
	expiry, value := decodeEntry(raw)
	if expiry != NeverExpire && expiry <= e.nowFn() {
		e.Remove(ctx, key)
		return nil, 0, false
	}

	e.mu.Lock()
	if el, ok := e.index[key]; ok {
		e.ll.MoveToFront(el)
	}
	e.mu.Unlock()
	return value, expiry, true
}

// Remove deletes key.
func (e *diskEnvelope) Remove(ctx context.Context, key string) bool {
	e.mu.Lock()
	el, ok := e.index[key]
	if ok {
		e.ll.Remove(el)
		delete(e.index, key)
		e.used -= el.Value.(*diskLRUEntry).size
	}
	e.mu.Unlock()
	if !ok {
		return false
	}
	_ = e.store.Delete(ctx, []byte(key))
	return true
}

// RemoveKeysWithPrefix deletes every key beginning with prefix.
func (e *diskEnvelope) RemoveKeysWithPrefix(ctx context.Context, prefix string) error {
	e.mu.Lock()
	var toDelete []string
	for key := range e.index {
		if hasStringPrefix(key, prefix) {
			toDelete = append(toDelete, key)
		}
	}
	e.mu.Unlock()

	for _, key := range toDelete {
		e.Remove(ctx, key)
	}
	return e.store.DeletePrefix(ctx, []byte(prefix))
}
