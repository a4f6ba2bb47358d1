// Package store is the typed key/value store. Every access is checked
// against the schema version the store is stamped with before it reaches
// the backend: an unknown table, record key or index is a hard error.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/pennywise-dev/pennywise/internal/schema"
	"github.com/pennywise-dev/pennywise/internal/value"
)

var (
	// ErrTypeMismatch is returned when the Go type used for an access differs
	// from the type the schema declares for the record.
	ErrTypeMismatch = errors.New("store: record type mismatch")
	// ErrFutureVersion is returned when the stored data was written by a
	// newer schema than this program knows.
	ErrFutureVersion = errors.New("store: stored schema version is newer than supported")
)

// IndexSep joins the field values of a multi-field index.
const IndexSep = "\x1f"

// Migration upgrades stored data to schema version To. It runs with the
// store already reporting version To.
type Migration struct {
	To    int
	Name  string
	Apply func(ctx context.Context, s *Store) error
}

// Store is the typed layer over a Backend.
type Store struct {
	backend    Backend
	schema     *schema.Registry
	version    int
	logger     *slog.Logger
	migrations []Migration

	mu sync.Mutex // serializes read-modify-write in Merge
}

// Option configures Open.
type Option func(*Store)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMigrations registers data migrations.
func WithMigrations(ms ...Migration) Option {
	return func(s *Store) { s.migrations = append(s.migrations, ms...) }
}

// Open layers a Store over backend. A fresh backend is stamped with the
// latest schema version. An older one is migrated one version at a time.
func Open(ctx context.Context, backend Backend, reg *schema.Registry, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		schema:  reg,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	latest := reg.Latest()
	if latest == 0 {
		return nil, fmt.Errorf("opening store: %w: registry is empty", schema.ErrUnknownVersion)
	}

	stored, err := backend.SchemaVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading schema version: %w", err)
	}

	switch {
	case stored == 0:
		if err := backend.SetSchemaVersion(ctx, latest); err != nil {
			return nil, fmt.Errorf("stamping schema version: %w", err)
		}
		s.version = latest
		s.logger.Info("initialized store", "version", latest)
	case stored > latest:
		return nil, fmt.Errorf("%w: stored %d, latest %d", ErrFutureVersion, stored, latest)
	default:
		if _, err := reg.Tables(stored); err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		s.version = stored
		if err := s.migrate(ctx, latest); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context, latest int) error {
	for _, v := range s.schema.Versions() {
		if v <= s.version || v > latest {
			continue
		}
		from := s.version
		s.version = v
		for _, m := range s.migrations {
			if m.To != v {
				continue
			}
			s.logger.Info("running migration", "name", m.Name, "from", from, "to", v)
			if err := m.Apply(ctx, s); err != nil {
				s.version = from
				return fmt.Errorf("migration %q to version %d: %w", m.Name, v, err)
			}
		}
		if err := s.backend.SetSchemaVersion(ctx, v); err != nil {
			s.version = from
			return fmt.Errorf("stamping schema version %d: %w", v, err)
		}
		s.logger.Info("migrated store", "from", from, "to", v)
	}
	return nil
}

// Version returns the schema version the store is stamped with.
func (s *Store) Version() int { return s.version }

// Schema returns the registry the store validates against.
func (s *Store) Schema() *schema.Registry { return s.schema }

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }

// Delete removes the entry under key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, table, key string) error {
	if _, err := s.schema.Lookup(s.version, table, key); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, table, key); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", table, key, err)
	}
	return nil
}

// Count returns how many entries of table have keys starting with prefix.
func (s *Store) Count(ctx context.Context, table, prefix string) (int, error) {
	if _, err := s.schema.Table(s.version, table); err != nil {
		return 0, err
	}
	entries, err := s.backend.List(ctx, table, prefix)
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", table, err)
	}
	return len(entries), nil
}

// Reserve claims n consecutive numbers of the named sequence and returns the
// first. Numbers at or below floor are never handed out.
func (s *Store) Reserve(ctx context.Context, name string, floor, n int) (int, error) {
	first, err := s.backend.Reserve(ctx, name, floor, n)
	if err != nil {
		return 0, fmt.Errorf("reserving %d from sequence %s: %w", n, name, err)
	}
	return first, nil
}

// Reindex recomputes the index values of every entry in table under the
// current schema version. It returns the number of entries rewritten.
func (s *Store) Reindex(ctx context.Context, table string) (int, error) {
	if _, err := s.schema.Table(s.version, table); err != nil {
		return 0, err
	}
	entries, err := s.backend.List(ctx, table, "")
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", table, err)
	}
	for i, e := range entries {
		rec, err := s.schema.Lookup(s.version, table, e.Key)
		if err != nil {
			return 0, err
		}
		idx, err := indexValues(rec, e.Data)
		if err != nil {
			return 0, fmt.Errorf("indexing %s/%s: %w", table, e.Key, err)
		}
		entries[i].Index = idx
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := s.backend.Put(ctx, entries...); err != nil {
		return 0, fmt.Errorf("writing %s: %w", table, err)
	}
	s.logger.Debug("reindexed table", "table", table, "entries", len(entries))
	return len(entries), nil
}

// record resolves and type-checks the schema record for an access of T.
func record[T any](s *Store, table, key string) (schema.Record, error) {
	rec, err := s.schema.Lookup(s.version, table, key)
	if err != nil {
		return rec, err
	}
	if err := checkType[T](rec); err != nil {
		return rec, fmt.Errorf("%s/%s: %w", table, key, err)
	}
	return rec, nil
}

func checkType[T any](rec schema.Record) error {
	if want := reflect.TypeFor[T](); rec.Type != want {
		return fmt.Errorf("%w: schema declares %s, got %s", ErrTypeMismatch, rec.Type, want)
	}
	return nil
}

func encode[T any](s *Store, table, key string, v T) (Entry, error) {
	rec, err := record[T](s, table, key)
	if err != nil {
		return Entry{}, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding %s/%s: %w", table, key, err)
	}
	idx, err := indexValues(rec, data)
	if err != nil {
		return Entry{}, fmt.Errorf("indexing %s/%s: %w", table, key, err)
	}
	return Entry{Table: table, Key: key, Data: data, Index: idx}, nil
}

// indexValues extracts the value of every index declared on rec from the
// encoded record. Missing fields index as empty strings.
func indexValues(rec schema.Record, data []byte) (map[string]string, error) {
	if len(rec.Indexes) == 0 {
		return nil, nil
	}
	doc, err := value.Parse(data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rec.Indexes))
	for _, ix := range rec.Indexes {
		parts := make([]string, len(ix.Fields))
		for i := range ix.Fields {
			field, _ := doc.Lookup(ix.Path(i)...)
			parts[i] = field.Text()
		}
		out[ix.Name] = strings.Join(parts, IndexSep)
	}
	return out, nil
}
