// Package memory is an in-process store backend, used by tests and by
// commands run with the memory driver.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/pennywise-dev/pennywise/internal/store"
)

// Backend keeps every entry in maps guarded by one lock.
type Backend struct {
	mu      sync.RWMutex
	tables  map[string]map[string]store.Entry
	version int
	seqs    map[string]int
	closed  bool
}

var _ store.Backend = (*Backend)(nil)

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		tables: make(map[string]map[string]store.Entry),
		seqs:   make(map[string]int),
	}
}

func (b *Backend) Get(_ context.Context, table, key string) (store.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return store.Entry{}, store.ErrClosed
	}
	e, ok := b.tables[table][key]
	if !ok {
		return store.Entry{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, table, key)
	}
	return clone(e), nil
}

func (b *Backend) Put(_ context.Context, entries ...store.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return store.ErrClosed
	}
	for _, e := range entries {
		t, ok := b.tables[e.Table]
		if !ok {
			t = make(map[string]store.Entry)
			b.tables[e.Table] = t
		}
		t[e.Key] = clone(e)
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, table, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return store.ErrClosed
	}
	delete(b.tables[table], key)
	return nil
}

func (b *Backend) List(_ context.Context, table, prefix string) ([]store.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, store.ErrClosed
	}
	var out []store.Entry
	for _, key := range slices.Sorted(maps.Keys(b.tables[table])) {
		if strings.HasPrefix(key, prefix) {
			out = append(out, clone(b.tables[table][key]))
		}
	}
	return out, nil
}

func (b *Backend) Range(_ context.Context, table, index, from, to string) ([]store.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, store.ErrClosed
	}
	var out []store.Entry
	for _, e := range b.tables[table] {
		v, ok := e.Index[index]
		if !ok || v < from || (to != "" && v >= to) {
			continue
		}
		out = append(out, clone(e))
	}
	slices.SortFunc(out, func(a, c store.Entry) int {
		if n := strings.Compare(a.Index[index], c.Index[index]); n != 0 {
			return n
		}
		return strings.Compare(a.Key, c.Key)
	})
	return out, nil
}

func (b *Backend) SchemaVersion(context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, store.ErrClosed
	}
	return b.version, nil
}

func (b *Backend) SetSchemaVersion(_ context.Context, version int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return store.ErrClosed
	}
	b.version = version
	return nil
}

func (b *Backend) Reserve(_ context.Context, name string, floor, n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("reserving %d numbers of %s", n, name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, store.ErrClosed
	}
	last := max(b.seqs[name], floor)
	b.seqs[name] = last + n
	return last + 1, nil
}

// Close marks the backend closed. Data is kept so a test can inspect it.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Reopen clears the closed flag, standing in for reopening a file.
func (b *Backend) Reopen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = false
}

func clone(e store.Entry) store.Entry {
	e.Data = slices.Clone(e.Data)
	e.Index = maps.Clone(e.Index)
	return e
}
