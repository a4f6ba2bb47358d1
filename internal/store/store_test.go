package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennywise-dev/pennywise/internal/schema"
	"github.com/pennywise-dev/pennywise/internal/state"
	"github.com/pennywise-dev/pennywise/internal/store"
	"github.com/pennywise-dev/pennywise/internal/store/memory"
	"github.com/pennywise-dev/pennywise/internal/value"
)

type note struct {
	Day    string   `json:"day"`
	Text   string   `json:"text"`
	Labels []string `json:"labels"`
	Meta   struct {
		Author string `json:"author"`
	} `json:"meta"`
}

type prefs struct {
	Size  int      `json:"size"`
	Pins  []string `json:"pins"`
	Inner struct {
		A int `json:"a"`
		B int `json:"b"`
	} `json:"inner"`
}

func v1() schema.Version {
	return schema.Version{ID: 1, Tables: []schema.Table{
		{Name: "notes", Records: []schema.Record{
			schema.RecordOf[note]("note/<index>", schema.IndexOn("by_day", "day")),
			schema.RecordOf[prefs]("prefs"),
		}},
	}}
}

func v2() schema.Version {
	return schema.Version{ID: 2, Tables: []schema.Table{
		{Name: "notes", Records: []schema.Record{
			schema.RecordOf[note]("note/<index>",
				schema.IndexOn("by_day", "day"),
				schema.IndexOn("by_author", "meta.author", "day")),
			schema.RecordOf[prefs]("prefs"),
		}},
		{Name: "archive", Records: []schema.Record{
			schema.RecordOf[note]("archived/<name>"),
		}},
	}}
}

func openStore(t *testing.T, versions ...schema.Version) (*store.Store, *memory.Backend) {
	t.Helper()
	if len(versions) == 0 {
		versions = []schema.Version{v1()}
	}
	reg, err := schema.NewRegistry(versions...)
	require.NoError(t, err)
	b := memory.New()
	s, err := store.Open(context.Background(), b, reg)
	require.NoError(t, err)
	return s, b
}

func TestOpenStampsLatestVersion(t *testing.T) {
	s, b := openStore(t, v1(), v2())
	assert.Equal(t, 2, s.Version())

	v, err := b.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestOpenRejectsFutureVersion(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	require.NoError(t, b.SetSchemaVersion(ctx, 5))
	reg, err := schema.NewRegistry(v1())
	require.NoError(t, err)

	_, err = store.Open(ctx, b, reg)
	assert.ErrorIs(t, err, store.ErrFutureVersion)
}

func TestOpenRejectsEmptyRegistry(t *testing.T) {
	reg, err := schema.NewRegistry()
	require.NoError(t, err)
	_, err = store.Open(context.Background(), memory.New(), reg)
	assert.ErrorIs(t, err, schema.ErrUnknownVersion)
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	n := note{Day: "2025-03-01", Text: "hello", Labels: []string{"a"}}
	require.NoError(t, store.Put(ctx, s, "notes", "note/1", n))

	got, err := store.Get[note](ctx, s, "notes", "note/1")
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestGetMissing(t *testing.T) {
	s, _ := openStore(t)
	_, err := store.Get[note](context.Background(), s, "notes", "note/7")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccessIsCheckedAgainstSchema(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	err := store.Put(ctx, s, "missing", "note/1", note{})
	assert.ErrorIs(t, err, schema.ErrUnknownTable)

	err = store.Put(ctx, s, "notes", "note/abc", note{})
	assert.ErrorIs(t, err, schema.ErrUnknownRecord)

	err = store.Put(ctx, s, "notes", "note/1", prefs{})
	assert.ErrorIs(t, err, store.ErrTypeMismatch)

	_, err = store.Get[prefs](ctx, s, "notes", "note/1")
	assert.ErrorIs(t, err, store.ErrTypeMismatch)

	_, err = store.Query[note](ctx, s, "notes", "by_author", "", "")
	assert.ErrorIs(t, err, schema.ErrUnknownIndex)

	err = s.Delete(ctx, "notes", "nope")
	assert.ErrorIs(t, err, schema.ErrUnknownRecord)
}

func TestListSkipsOtherRecordTypes(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	require.NoError(t, store.PutBatch(ctx, s, "notes", []store.KV[note]{
		{Key: "note/1", Value: note{Text: "one"}},
		{Key: "note/2", Value: note{Text: "two"}},
	}))
	require.NoError(t, store.Put(ctx, s, "notes", "prefs", prefs{Size: 3}))

	notes, err := store.List[note](ctx, s, "notes", "")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "note/1", notes[0].Key)
	assert.Equal(t, "two", notes[1].Value.Text)

	n, err := s.Count(ctx, "notes", "note/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPutBatchValidatesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	err := store.PutBatch(ctx, s, "notes", []store.KV[note]{
		{Key: "note/1", Value: note{}},
		{Key: "bogus", Value: note{}},
	})
	require.ErrorIs(t, err, schema.ErrUnknownRecord)

	n, err := s.Count(ctx, "notes", "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueryByIndex(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	require.NoError(t, store.PutBatch(ctx, s, "notes", []store.KV[note]{
		{Key: "note/1", Value: note{Day: "2025-02-10"}},
		{Key: "note/2", Value: note{Day: "2025-01-05"}},
		{Key: "note/3", Value: note{Day: "2025-03-01"}},
	}))

	got, err := store.Query[note](ctx, s, "notes", "by_day", "2025-01-01", "2025-03-01")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "note/2", got[0].Key)
	assert.Equal(t, "note/1", got[1].Key)

	// rewriting a record moves it in the index
	require.NoError(t, store.Put(ctx, s, "notes", "note/3", note{Day: "2024-12-31"}))
	got, err = store.Query[note](ctx, s, "notes", "by_day", "", "2025-01-01")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "note/3", got[0].Key)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	require.NoError(t, store.Put(ctx, s, "notes", "note/1", note{Day: "2025-01-01"}))
	require.NoError(t, s.Delete(ctx, "notes", "note/1"))

	_, err := store.Get[note](ctx, s, "notes", "note/1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err := store.Query[note](ctx, s, "notes", "by_day", "", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMigrationRunsOnOpen(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	reg1, err := schema.NewRegistry(v1())
	require.NoError(t, err)
	s, err := store.Open(ctx, b, reg1)
	require.NoError(t, err)
	n := note{Day: "2025-01-02"}
	n.Meta.Author = "kim"
	require.NoError(t, store.Put(ctx, s, "notes", "note/1", n))
	require.NoError(t, s.Close())
	b.Reopen()

	var ran []int
	reg2, err := schema.NewRegistry(v1(), v2())
	require.NoError(t, err)
	s, err = store.Open(ctx, b, reg2, store.WithMigrations(store.Migration{
		To:   2,
		Name: "reindex notes",
		Apply: func(ctx context.Context, s *store.Store) error {
			ran = append(ran, s.Version())
			_, err := s.Reindex(ctx, "notes")
			return err
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, ran)
	assert.Equal(t, 2, s.Version())

	got, err := store.Query[note](ctx, s, "notes", "by_author", "kim", "kin")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "note/1", got[0].Key)

	// the archive table only exists from version 2
	require.NoError(t, store.Put(ctx, s, "archive", "archived/old", note{}))
}

func TestFailedMigrationLeavesVersion(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	require.NoError(t, b.SetSchemaVersion(ctx, 1))

	reg, err := schema.NewRegistry(v1(), v2())
	require.NoError(t, err)
	boom := errors.New("boom")
	_, err = store.Open(ctx, b, reg, store.WithMigrations(store.Migration{
		To:    2,
		Name:  "fails",
		Apply: func(context.Context, *store.Store) error { return boom },
	}))
	require.ErrorIs(t, err, boom)

	v, err := b.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMergeStartsFromEmpty(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)
	st, err := state.New(prefs{Size: 10, Pins: []string{}}, state.Overrides[prefs]{})
	require.NoError(t, err)

	got, err := store.Load(ctx, s, st, "notes", "prefs")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Size)

	partial, err := value.Parse([]byte(`{"pins":["x"],"inner":{"a":1}}`))
	require.NoError(t, err)
	got, err = store.Merge(ctx, s, st, "notes", "prefs", partial)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Size)
	assert.Equal(t, []string{"x"}, got.Pins)
	assert.Equal(t, 1, got.Inner.A)

	partial, err = value.Parse([]byte(`{"pins":["y"],"inner":{"b":2},"size":null}`))
	require.NoError(t, err)
	got, err = store.Merge(ctx, s, st, "notes", "prefs", partial)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Size)
	assert.Equal(t, []string{"x", "y"}, got.Pins)
	assert.Equal(t, 1, got.Inner.A)
	assert.Equal(t, 2, got.Inner.B)

	stored, err := store.Get[prefs](ctx, s, "notes", "prefs")
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestConcurrentMergesAreSerialized(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)
	st, err := state.New(prefs{Pins: []string{}}, state.Overrides[prefs]{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Merge(ctx, s, st, "notes", "prefs", value.ObjectOf(map[string]value.Value{
				"pins": value.ArrayOf(value.StringOf("p")),
			}))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get[prefs](ctx, s, "notes", "prefs")
	require.NoError(t, err)
	assert.Len(t, got.Pins, 20)
}
