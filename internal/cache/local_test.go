package cache_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomhub/internal/cache"
)

func TestLocalStore_BlobRoundTrip(t *testing.T) {
	store := cache.NewLocalStore()
	ctx := context.Background()

	_, err := store.GetBlob(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrKeyMiss)

	require.NoError(t, store.SetBlob(ctx, "k", []byte(`{"a":1}`), 0))
	got, err := store.GetBlob(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)

	require.NoError(t, store.DeleteKey(ctx, "k"))
	_, err = store.GetBlob(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrKeyMiss)
}

func TestLocalStore_UpdateBlob_CreatesWhenAbsent(t *testing.T) {
	store := cache.NewLocalStore()
	ctx := context.Background()

	next, err := store.UpdateBlob(ctx, "counter", 0, func(prev []byte, found bool) ([]byte, error) {
		assert.False(t, found)
		assert.Nil(t, prev)
		return []byte("1"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), next)

	got, err := store.GetBlob(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
}

func TestLocalStore_UpdateBlob_NoUpdateLeavesValue(t *testing.T) {
	store := cache.NewLocalStore()
	ctx := context.Background()
	require.NoError(t, store.SetBlob(ctx, "k", []byte("orig"), 0))

	_, err := store.UpdateBlob(ctx, "k", 0, func(prev []byte, found bool) ([]byte, error) {
		assert.True(t, found)
		return nil, cache.ErrNoUpdate
	})
	assert.ErrorIs(t, err, cache.ErrNoUpdate)

	got, err := store.GetBlob(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("orig"), got)
}

func TestLocalStore_UpdateBlob_ConcurrentIncrements(t *testing.T) {
	store := cache.NewLocalStore()
	ctx := context.Background()
	const writers = 50

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.UpdateBlob(ctx, "counter", 0, func(prev []byte, found bool) ([]byte, error) {
				n := 0
				if found {
					if err := json.Unmarshal(prev, &n); err != nil {
						return nil, err
					}
				}
				return json.Marshal(n + 1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetBlob(ctx, "counter")
	require.NoError(t, err)
	var n int
	require.NoError(t, json.Unmarshal(got, &n))
	assert.Equal(t, writers, n, "no increment may be lost")
}

func TestLocalStore_RankedAppendAndRange(t *testing.T) {
	store := cache.NewLocalStore()
	ctx := context.Background()

	count, err := store.CountRanked(ctx, "seq")
	require.NoError(t, err)
	assert.Zero(t, count)

	for i := 0; i < 5; i++ {
		rank, err := store.AppendRanked(ctx, "seq", []byte(fmt.Sprintf(`"m%d"`, i)), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(i), rank, "rank equals the count before the append")
	}

	count, err = store.CountRanked(ctx, "seq")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	// Forward range returns insertion order.
	raws, err := store.RangeRanked(ctx, "seq", 0, 2)
	require.NoError(t, err)
	require.Len(t, raws, 3)
	assert.Equal(t, `"m0"`, string(raws[0]))
	assert.Equal(t, `"m2"`, string(raws[2]))

	// Reverse range returns newest first.
	raws, err = store.RevRangeRanked(ctx, "seq", 0, 1)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, `"m4"`, string(raws[0]))
	assert.Equal(t, `"m3"`, string(raws[1]))

	// Out-of-bounds stop is clamped.
	raws, err = store.RevRangeRanked(ctx, "seq", 3, 99)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, `"m1"`, string(raws[0]))
	assert.Equal(t, `"m0"`, string(raws[1]))

	// A window past the end is empty, not an error.
	raws, err = store.RevRangeRanked(ctx, "seq", 10, 19)
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestLocalStore_RankedConcurrentAppends(t *testing.T) {
	store := cache.NewLocalStore()
	ctx := context.Background()
	const writers = 40

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, err := store.AppendRanked(ctx, "seq", []byte(fmt.Sprintf(`"m%d"`, i)), 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := store.CountRanked(ctx, "seq")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), count, "no append may be lost")

	raws, err := store.RangeRanked(ctx, "seq", 0, count-1)
	require.NoError(t, err)
	seen := make(map[string]bool, writers)
	for _, raw := range raws {
		seen[string(raw)] = true
	}
	assert.Len(t, seen, writers, "every payload appears exactly once")
}

func TestLocalStore_KeysAndDeleteMatching(t *testing.T) {
	store := cache.NewLocalStore()
	ctx := context.Background()

	require.NoError(t, store.SetBlob(ctx, "discussionStore:aaa", []byte("1"), 0))
	require.NoError(t, store.SetBlob(ctx, "discussionStore:bbb", []byte("2"), 0))
	require.NoError(t, store.SetBlob(ctx, "room:aaa", []byte("3"), 0))

	keys, err := store.Keys(ctx, cache.LedgerPattern())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"discussionStore:aaa", "discussionStore:bbb"}, keys)

	require.NoError(t, store.DeleteMatching(ctx, cache.LedgerPattern()))
	keys, err = store.Keys(ctx, cache.LedgerPattern())
	require.NoError(t, err)
	assert.Empty(t, keys)

	ok, err := store.Exists(ctx, "room:aaa")
	require.NoError(t, err)
	assert.True(t, ok, "other namespaces are untouched")
}
