package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no entry exists under a key.
	ErrNotFound = errors.New("store: not found")
	// ErrClosed is returned by backends used after Close.
	ErrClosed = errors.New("store: backend closed")
)

// Entry is one raw record as a backend sees it.
type Entry struct {
	Table string
	Key   string
	Data  []byte

	// Index maps index name to the value indexed for this entry. On Put it
	// replaces every index value previously held for the key. Backends fill
	// it on Range results.
	Index map[string]string
}

// Backend is the raw key/value surface a Store is layered over. Backends
// serialize their own writes; a Put of several entries is atomic.
type Backend interface {
	Get(ctx context.Context, table, key string) (Entry, error)
	Put(ctx context.Context, entries ...Entry) error
	Delete(ctx context.Context, table, key string) error

	// List returns the entries of table whose key starts with prefix,
	// ordered by key.
	List(ctx context.Context, table, prefix string) ([]Entry, error)

	// Range returns the entries of table whose value for index lies in
	// [from, to), ordered by index value then key. An empty to is unbounded.
	Range(ctx context.Context, table, index, from, to string) ([]Entry, error)

	// SchemaVersion returns the stamped schema version, 0 for a fresh store.
	SchemaVersion(ctx context.Context) (int, error)
	SetSchemaVersion(ctx context.Context, version int) error

	// Reserve atomically claims the next n numbers of the named sequence
	// and returns the first. The sequence is first raised to floor if it is
	// below it, so numbers handed out before the sequence existed are
	// skipped. Two callers never receive overlapping ranges.
	Reserve(ctx context.Context, name string, floor, n int) (int, error)

	Close() error
}
