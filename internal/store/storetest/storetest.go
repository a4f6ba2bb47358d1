// Package storetest checks a store.Backend against the behavior every
// backend must share.
package storetest

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennywise-dev/pennywise/internal/store"
)

// Run exercises the backend returned by open. Each subtest gets a fresh one.
func Run(t *testing.T, open func(t *testing.T) store.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		b := open(t)
		_, err := b.Get(ctx, "t", "k")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		b := open(t)
		require.NoError(t, b.Put(ctx, store.Entry{
			Table: "t", Key: "k", Data: []byte(`{"a":1}`),
			Index: map[string]string{"by_a": "1"},
		}))

		got, err := b.Get(ctx, "t", "k")
		require.NoError(t, err)
		assert.Equal(t, "t", got.Table)
		assert.Equal(t, "k", got.Key)
		assert.JSONEq(t, `{"a":1}`, string(got.Data))
		assert.Equal(t, map[string]string{"by_a": "1"}, got.Index)
	})

	t.Run("tables are separate", func(t *testing.T) {
		b := open(t)
		require.NoError(t, b.Put(ctx, store.Entry{Table: "a", Key: "k", Data: []byte(`1`)}))
		_, err := b.Get(ctx, "b", "k")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("put replaces data and index", func(t *testing.T) {
		b := open(t)
		require.NoError(t, b.Put(ctx, store.Entry{
			Table: "t", Key: "k", Data: []byte(`1`),
			Index: map[string]string{"x": "1", "y": "1"},
		}))
		require.NoError(t, b.Put(ctx, store.Entry{
			Table: "t", Key: "k", Data: []byte(`2`),
			Index: map[string]string{"x": "2"},
		}))

		got, err := b.Get(ctx, "t", "k")
		require.NoError(t, err)
		assert.Equal(t, "2", string(got.Data))
		assert.Equal(t, map[string]string{"x": "2"}, got.Index)

		hits, err := b.Range(ctx, "t", "y", "", "")
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("delete", func(t *testing.T) {
		b := open(t)
		require.NoError(t, b.Put(ctx, store.Entry{
			Table: "t", Key: "k", Data: []byte(`1`),
			Index: map[string]string{"x": "1"},
		}))
		require.NoError(t, b.Delete(ctx, "t", "k"))
		require.NoError(t, b.Delete(ctx, "t", "k"))

		_, err := b.Get(ctx, "t", "k")
		assert.ErrorIs(t, err, store.ErrNotFound)
		hits, err := b.Range(ctx, "t", "x", "", "")
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("list by prefix in key order", func(t *testing.T) {
		b := open(t)
		require.NoError(t, b.Put(ctx,
			store.Entry{Table: "t", Key: "item/2", Data: []byte(`2`)},
			store.Entry{Table: "t", Key: "item/10", Data: []byte(`10`)},
			store.Entry{Table: "t", Key: "other", Data: []byte(`0`)},
			store.Entry{Table: "u", Key: "item/1", Data: []byte(`1`)},
		))

		got, err := b.List(ctx, "t", "item/")
		require.NoError(t, err)
		assert.Equal(t, []string{"item/10", "item/2"}, keys(got))

		all, err := b.List(ctx, "t", "")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("list treats prefix literally", func(t *testing.T) {
		b := open(t)
		require.NoError(t, b.Put(ctx,
			store.Entry{Table: "t", Key: "a_b", Data: []byte(`1`)},
			store.Entry{Table: "t", Key: "axb", Data: []byte(`2`)},
			store.Entry{Table: "t", Key: "a%c", Data: []byte(`3`)},
		))

		got, err := b.List(ctx, "t", "a_")
		require.NoError(t, err)
		assert.Equal(t, []string{"a_b"}, keys(got))

		got, err = b.List(ctx, "t", "a%")
		require.NoError(t, err)
		assert.Equal(t, []string{"a%c"}, keys(got))
	})

	t.Run("range is half open and ordered", func(t *testing.T) {
		b := open(t)
		require.NoError(t, b.Put(ctx,
			store.Entry{Table: "t", Key: "k1", Data: []byte(`1`), Index: map[string]string{"d": "2025-01-03"}},
			store.Entry{Table: "t", Key: "k2", Data: []byte(`2`), Index: map[string]string{"d": "2025-01-01"}},
			store.Entry{Table: "t", Key: "k3", Data: []byte(`3`), Index: map[string]string{"d": "2025-01-02"}},
			store.Entry{Table: "t", Key: "k0", Data: []byte(`0`), Index: map[string]string{"d": "2025-01-02"}},
			store.Entry{Table: "t", Key: "k4", Data: []byte(`4`)},
		))

		got, err := b.Range(ctx, "t", "d", "2025-01-02", "2025-01-03")
		require.NoError(t, err)
		assert.Equal(t, []string{"k0", "k3"}, keys(got))

		got, err = b.Range(ctx, "t", "d", "", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"k2", "k0", "k3", "k1"}, keys(got))
		assert.Equal(t, "2025-01-01", got[0].Index["d"])
	})

	t.Run("schema version", func(t *testing.T) {
		b := open(t)
		v, err := b.SchemaVersion(ctx)
		require.NoError(t, err)
		assert.Zero(t, v)

		require.NoError(t, b.SetSchemaVersion(ctx, 3))
		v, err = b.SchemaVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("reserve hands out consecutive ranges", func(t *testing.T) {
		b := open(t)
		first, err := b.Reserve(ctx, "txn", 0, 3)
		require.NoError(t, err)
		assert.Equal(t, 1, first)

		first, err = b.Reserve(ctx, "txn", 0, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, first)

		first, err = b.Reserve(ctx, "other", 0, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, first, "sequences are independent")

		_, err = b.Reserve(ctx, "txn", 0, 0)
		assert.Error(t, err)
	})

	t.Run("reserve starts above floor", func(t *testing.T) {
		b := open(t)
		first, err := b.Reserve(ctx, "txn", 10, 2)
		require.NoError(t, err)
		assert.Equal(t, 11, first)

		// a lower floor does not rewind
		first, err = b.Reserve(ctx, "txn", 5, 1)
		require.NoError(t, err)
		assert.Equal(t, 13, first)

		first, err = b.Reserve(ctx, "txn", 20, 1)
		require.NoError(t, err)
		assert.Equal(t, 21, first)
	})

	t.Run("concurrent reserves never overlap", func(t *testing.T) {
		b := open(t)
		const workers, size = 8, 5
		firsts := make([]int, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				first, err := b.Reserve(ctx, "txn", 0, size)
				assert.NoError(t, err)
				firsts[i] = first
			}()
		}
		wg.Wait()

		slices.Sort(firsts)
		for i, first := range firsts {
			assert.Equal(t, 1+i*size, first)
		}
	})

	t.Run("returned entries are copies", func(t *testing.T) {
		b := open(t)
		data := []byte(`"a"`)
		require.NoError(t, b.Put(ctx, store.Entry{Table: "t", Key: "k", Data: data}))
		data[1] = 'z'

		got, err := b.Get(ctx, "t", "k")
		require.NoError(t, err)
		assert.Equal(t, `"a"`, string(got.Data))
	})

	t.Run("closed", func(t *testing.T) {
		b := open(t)
		require.NoError(t, b.Close())
		_, err := b.Get(ctx, "t", "k")
		assert.ErrorIs(t, err, store.ErrClosed)
	})
}

func keys(entries []store.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}
