// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package testsuite

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heremaps/here-data-sdk-go/private/kvstore"
)

func testRange(t *testing.T, store kvstore.Store) {
	ctx := context.Background()

	err := store.Range(ctx, func(ctx context.Context, key kvstore.Key, value kvstore.Value) error {
		return errors.New("store should have been empty at test start")
	})
	require.NoError(t, err)

	items := kvstore.Items{
		newItem("range/a", "a", false),
		newItem("range/b/1", "b/1", false),
		newItem("range/b/2", "b/2", false),
		newItem("range/b/3", "b/3", false),
		newItem("range/c", "c", false),
	}
	rand.Shuffle(len(items), items.Swap)
	defer cleanupItems(t, store, items)

	require.NoError(t, kvstore.PutAll(ctx, store, items...))

	var output kvstore.Items
	err = store.Range(ctx, func(ctx context.Context, key kvstore.Key, value kvstore.Value) error {
		if len(key) < 6 || string(key[:6]) != "range/" {
			return nil // ignore any unrelated keys left by other subtests
		}
		output = append(output, kvstore.Item{
			Key:   append([]byte{}, key...),
			Value: append([]byte{}, value...),
		})
		return nil
	})
	require.NoError(t, err)

	expected := kvstore.CloneItems(items)
	sort.Sort(expected)
	sort.Sort(output)

	require.EqualValues(t, expected, output)
}
