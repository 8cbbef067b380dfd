// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package memkv implements kvstore.Store in memory, used by tests and
// by callers who opt out of on-disk persistence entirely.
package memkv

import (
	"bytes"
	"context"
	"sync"

	"github.com/heremaps/here-data-sdk-go/private/kvstore"
)

// Store is a mutex-guarded in-memory kvstore.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put implements kvstore.Store.
func (s *Store) Put(ctx context.Context, key, value kvstore.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = append([]byte{}, value...)
	return nil
}

// Get implements kvstore.Store.
func (s *Store) Get(ctx context.Context, key kvstore.Key) (kvstore.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, kvstore.ErrKeyNotFound
	}
	return append([]byte{}, v...), nil
}

// Delete implements kvstore.Store.
func (s *Store) Delete(ctx context.Context, key kvstore.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

// DeletePrefix implements kvstore.Store.
func (s *Store) DeletePrefix(ctx context.Context, prefix kvstore.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			delete(s.data, k)
		}
	}
	return nil
}

// Range implements kvstore.Store.
func (s *Store) Range(ctx context.Context, fn func(ctx context.Context, key kvstore.Key, value kvstore.Value) error) error {
	s.mu.RLock()
	snapshot := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	for k, v := range snapshot {
		if err := fn(ctx, []byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

// Close implements kvstore.Store.
func (s *Store) Close() error { return nil }
