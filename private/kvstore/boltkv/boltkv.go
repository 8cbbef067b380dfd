// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package boltkv implements kvstore.Store on top of bbolt, the
// reference disk-tier backend for the two-tier cache.
package boltkv

import (
	"context"

	"go.etcd.io/bbolt"

	"github.com/heremaps/here-data-sdk-go/private/kvstore"
)

var bucketName = []byte("kv")

// Store is a bbolt-backed kvstore.Store.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, kvstore.Error.Wrap(err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, kvstore.Error.Wrap(err)
	}

	return &Store{db: db}, nil
}

// Put implements kvstore.Store.
func (s *Store) Put(ctx context.Context, key, value kvstore.Key) error {
	return kvstore.Error.Wrap(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, value)
	}))
}

// Get implements kvstore.Store.
func (s *Store) Get(ctx context.Context, key kvstore.Key) (kvstore.Value, error) {
	var value kvstore.Value
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v == nil {
			return kvstore.ErrKeyNotFound
		}
		value = append(kvstore.Value{}, v...)
		return nil
	})
	if err != nil {
		if kvstore.Error.Has(err) || err == kvstore.ErrKeyNotFound {
			return nil, err
		}
		return nil, kvstore.Error.Wrap(err)
	}
	return value, nil
}

// Delete implements kvstore.Store.
func (s *Store) Delete(ctx context.Context, key kvstore.Key) error {
	return kvstore.Error.Wrap(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	}))
}

// DeletePrefix implements kvstore.Store.
func (s *Store) DeletePrefix(ctx context.Context, prefix kvstore.Key) error {
	return kvstore.Error.Wrap(s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte{}, k...))
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	}))
}

// Range implements kvstore.Store.
func (s *Store) Range(ctx context.Context, fn func(ctx context.Context, key kvstore.Key, value kvstore.Value) error) error {
	return kvstore.Error.Wrap(s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			return fn(ctx, k, v)
		})
	}))
}

// Close implements kvstore.Store.
func (s *Store) Close() error {
	return kvstore.Error.Wrap(s.db.Close())
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
