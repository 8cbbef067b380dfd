// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package testsuite is a conformance test suite run against every
// kvstore.Store backend, so boltkv and memkv are held to the same
// contract.
package testsuite

import (
	"context"
	"testing"

	"github.com/heremaps/here-data-sdk-go/private/kvstore"
)

func newItem(key, value string, _ bool) kvstore.Item {
	return kvstore.Item{Key: []byte(key), Value: []byte(value)}
}

func cleanupItems(t *testing.T, store kvstore.Store, items kvstore.Items) {
	t.Helper()
	for _, it := range items {
		_ = store.Delete(context.Background(), it.Key)
	}
}

// Run exercises the full kvstore.Store contract against store.
func Run(t *testing.T, store kvstore.Store) {
	t.Run("CRUD", func(t *testing.T) { testCRUD(t, store) })
	t.Run("Range", func(t *testing.T) { testRange(t, store) })
}
