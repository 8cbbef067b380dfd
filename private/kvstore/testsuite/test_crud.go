// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package testsuite

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/heremaps/here-data-sdk-go/private/kvstore"
)

func testCRUD(t *testing.T, store kvstore.Store) {
	ctx := context.Background()

	items := kvstore.Items{
		newItem("\x00", "\x00", false),
		newItem("a/b", "\x01\x00", false),
		newItem("a\\b", "\xFF", false),
		newItem("full/path/1", "\x00\xFF\xFF\x00", false),
		newItem("full/path/2", "\x00\xFF\xFF\x01", false),
		newItem("full/path/3", "\x00\xFF\xFF\x02", false),
		newItem("öö", "üü", false),
	}
	rand.Shuffle(len(items), items.Swap)
	defer cleanupItems(t, store, items)

	t.Run("Put", func(t *testing.T) {
		for _, item := range items {
			if err := store.Put(ctx, item.Key, item.Value); err != nil {
				t.Fatalf("failed to put %q = %v: %v", item.Key, item.Value, err)
			}
		}
	})

	rand.Shuffle(len(items), items.Swap)

	t.Run("Get", func(t *testing.T) {
		for _, item := range items {
			value, err := store.Get(ctx, item.Key)
			if err != nil {
				t.Fatalf("failed to get %q = %v: %v", item.Key, item.Value, err)
			}
			if !bytes.Equal(value, item.Value) {
				t.Fatalf("invalid value for %q: want %v got %v", item.Key, item.Value, value)
			}
		}
	})

	t.Run("Delete", func(t *testing.T) {
		for _, item := range items {
			if _, err := store.Get(ctx, item.Key); err != nil {
				t.Fatalf("failed to get %v before delete: %v", item.Key, err)
			}
		}

		for _, item := range items {
			if err := store.Delete(ctx, item.Key); err != nil {
				t.Fatalf("failed to delete %v: %v", item.Key, err)
			}
		}

		for _, item := range items {
			if value, err := store.Get(ctx, item.Key); err == nil {
				t.Fatalf("got deleted value %q = %v", item.Key, value)
			}
		}
	})
}
