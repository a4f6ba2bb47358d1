// Package sqlite is the on-disk store backend.
//
// Entries live in one table keyed by (tbl, key) with the encoded record as
// a blob. Index values live in entry_index, one row per entry and index, so
// a range query is a scan of idx_entry_index_val.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pennywise-dev/pennywise/internal/store"
)

const ddl = `
CREATE TABLE IF NOT EXISTS entries (
	tbl  TEXT NOT NULL,
	key  TEXT NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (tbl, key)
);

CREATE TABLE IF NOT EXISTS entry_index (
	tbl TEXT NOT NULL,
	idx TEXT NOT NULL,
	key TEXT NOT NULL,
	val TEXT NOT NULL,
	PRIMARY KEY (tbl, idx, key),
	FOREIGN KEY (tbl, key) REFERENCES entries (tbl, key) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_entry_index_val
	ON entry_index (tbl, idx, val, key);

CREATE TABLE IF NOT EXISTS meta (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	versionKey = "schema_version"
	seqPrefix  = "seq:"
)

// Backend stores entries in a SQLite database file.
type Backend struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ store.Backend = (*Backend)(nil)

// Open opens or creates the database at path. Use ":memory:" for a
// throwaway database.
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.Close()
}

func (b *Backend) Get(ctx context.Context, table, key string) (store.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := store.Entry{Table: table, Key: key}
	err := b.db.QueryRowContext(ctx,
		`SELECT data FROM entries WHERE tbl = ? AND key = ?`, table, key).Scan(&e.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("%w: %s/%s", store.ErrNotFound, table, key)
	}
	if err != nil {
		return e, wrap(err)
	}
	idx, err := b.indexOf(ctx, table, key)
	if err != nil {
		return e, err
	}
	e.Index = idx
	return e, nil
}

func (b *Backend) Put(ctx context.Context, entries ...store.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries (tbl, key, data) VALUES (?, ?, ?)
			 ON CONFLICT (tbl, key) DO UPDATE SET data = excluded.data`,
			e.Table, e.Key, e.Data); err != nil {
			return fmt.Errorf("writing %s/%s: %w", e.Table, e.Key, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entry_index WHERE tbl = ? AND key = ?`, e.Table, e.Key); err != nil {
			return fmt.Errorf("clearing index of %s/%s: %w", e.Table, e.Key, err)
		}
		for name, val := range e.Index {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO entry_index (tbl, idx, key, val) VALUES (?, ?, ?, ?)`,
				e.Table, name, e.Key, val); err != nil {
				return fmt.Errorf("indexing %s/%s: %w", e.Table, e.Key, err)
			}
		}
	}
	return tx.Commit()
}

func (b *Backend) Delete(ctx context.Context, table, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `DELETE FROM entries WHERE tbl = ? AND key = ?`, table, key)
	return wrap(err)
}

func (b *Backend) List(ctx context.Context, table, prefix string) ([]store.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rows, err := b.db.QueryContext(ctx,
		`SELECT key, data FROM entries WHERE tbl = ? AND instr(key, ?) = 1 ORDER BY key`,
		table, prefix)
	if err != nil {
		return nil, wrap(err)
	}
	entries, err := scanEntries(rows, table)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		idx, err := b.indexOf(ctx, table, entries[i].Key)
		if err != nil {
			return nil, err
		}
		entries[i].Index = idx
	}
	return entries, nil
}

func (b *Backend) Range(ctx context.Context, table, index, from, to string) ([]store.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rows, err := b.db.QueryContext(ctx, `
		SELECT e.key, e.data
		FROM entry_index i
		JOIN entries e ON e.tbl = i.tbl AND e.key = i.key
		WHERE i.tbl = ? AND i.idx = ? AND i.val >= ? AND (? = '' OR i.val < ?)
		ORDER BY i.val, i.key`,
		table, index, from, to, to)
	if err != nil {
		return nil, wrap(err)
	}
	entries, err := scanEntries(rows, table)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		idx, err := b.indexOf(ctx, table, entries[i].Key)
		if err != nil {
			return nil, err
		}
		entries[i].Index = idx
	}
	return entries, nil
}

func (b *Backend) SchemaVersion(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var raw string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = ?`, versionKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, wrap(err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing schema version %q: %w", raw, err)
	}
	return v, nil
}

func (b *Backend) SetSchemaVersion(ctx context.Context, version int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO meta (name, value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value`,
		versionKey, strconv.Itoa(version))
	return wrap(err)
}

// Reserve bumps the sequence in a single upsert, so concurrent processes
// sharing the file serialize on SQLite's write lock.
func (b *Backend) Reserve(ctx context.Context, name string, floor, n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("reserving %d numbers of %s", n, name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var raw string
	err := b.db.QueryRowContext(ctx,
		`INSERT INTO meta (name, value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = max(CAST(value AS INTEGER), ?) + ?
		 RETURNING value`,
		seqPrefix+name, strconv.Itoa(floor+n), floor, n).Scan(&raw)
	if err != nil {
		return 0, wrap(err)
	}
	last, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing sequence %s %q: %w", name, raw, err)
	}
	return last - n + 1, nil
}

func (b *Backend) indexOf(ctx context.Context, table, key string) (map[string]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT idx, val FROM entry_index WHERE tbl = ? AND key = ?`, table, key)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out map[string]string
	for rows.Next() {
		var name, val string
		if err := rows.Scan(&name, &val); err != nil {
			return nil, wrap(err)
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[name] = val
	}
	return out, wrap(rows.Err())
}

func scanEntries(rows *sql.Rows, table string) ([]store.Entry, error) {
	defer rows.Close()
	var out []store.Entry
	for rows.Next() {
		e := store.Entry{Table: table}
		if err := rows.Scan(&e.Key, &e.Data); err != nil {
			return nil, wrap(err)
		}
		out = append(out, e)
	}
	return out, wrap(rows.Err())
}

// wrap maps use-after-close onto store.ErrClosed.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if err.Error() == "sql: database is closed" {
		return fmt.Errorf("%w: %v", store.ErrClosed, err)
	}
	return err
}
