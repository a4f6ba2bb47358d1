package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pennywise-dev/pennywise/internal/state"
	"github.com/pennywise-dev/pennywise/internal/value"
)

// KV pairs a record key with its decoded value.
type KV[T any] struct {
	Key   string
	Value T
}

// Get reads and decodes the record under key.
func Get[T any](ctx context.Context, s *Store, table, key string) (T, error) {
	var out T
	if _, err := record[T](s, table, key); err != nil {
		return out, err
	}
	e, err := s.backend.Get(ctx, table, key)
	if err != nil {
		return out, fmt.Errorf("reading %s/%s: %w", table, key, err)
	}
	if err := json.Unmarshal(e.Data, &out); err != nil {
		return out, fmt.Errorf("decoding %s/%s: %w", table, key, err)
	}
	return out, nil
}

// Put encodes v and writes it under key, refreshing its index values.
func Put[T any](ctx context.Context, s *Store, table, key string, v T) error {
	e, err := encode(s, table, key, v)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, e); err != nil {
		return fmt.Errorf("writing %s/%s: %w", table, key, err)
	}
	return nil
}

// PutBatch writes items atomically. Every key is validated before anything
// is written.
func PutBatch[T any](ctx context.Context, s *Store, table string, items []KV[T]) error {
	if len(items) == 0 {
		return nil
	}
	entries := make([]Entry, len(items))
	for i, item := range items {
		e, err := encode(s, table, item.Key, item.Value)
		if err != nil {
			return err
		}
		entries[i] = e
	}
	if err := s.backend.Put(ctx, entries...); err != nil {
		return fmt.Errorf("writing %d entries to %s: %w", len(entries), table, err)
	}
	return nil
}

// List decodes the records of table whose key starts with prefix. Records of
// other types sharing the table are skipped.
func List[T any](ctx context.Context, s *Store, table, prefix string) ([]KV[T], error) {
	if _, err := s.schema.Table(s.version, table); err != nil {
		return nil, err
	}
	entries, err := s.backend.List(ctx, table, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	return decodeEntries[T](s, table, entries, true)
}

// Query decodes the records whose index value lies in [from, to). An empty
// to is unbounded.
func Query[T any](ctx context.Context, s *Store, table, index, from, to string) ([]KV[T], error) {
	_, rec, err := s.schema.Index(s.version, table, index)
	if err != nil {
		return nil, err
	}
	if err := checkType[T](rec); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", table, index, err)
	}
	entries, err := s.backend.Range(ctx, table, index, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying %s.%s: %w", table, index, err)
	}
	return decodeEntries[T](s, table, entries, false)
}

func decodeEntries[T any](s *Store, table string, entries []Entry, skipOtherTypes bool) ([]KV[T], error) {
	out := make([]KV[T], 0, len(entries))
	for _, e := range entries {
		rec, err := s.schema.Lookup(s.version, table, e.Key)
		if err != nil {
			return nil, err
		}
		if err := checkType[T](rec); err != nil {
			if skipOtherTypes {
				continue
			}
			return nil, fmt.Errorf("%s/%s: %w", table, e.Key, err)
		}
		var v T
		if err := json.Unmarshal(e.Data, &v); err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", table, e.Key, err)
		}
		out = append(out, KV[T]{Key: e.Key, Value: v})
	}
	return out, nil
}

// Load reads the state stored under key, or the state's empty value when
// nothing is stored yet.
func Load[S any](ctx context.Context, s *Store, st *state.State[S], table, key string) (S, error) {
	cur, err := Get[S](ctx, s, table, key)
	if errors.Is(err, ErrNotFound) {
		ev, err := value.From(st.Empty())
		if err != nil {
			return cur, err
		}
		return st.Normalize(ev)
	}
	return cur, err
}

// Merge applies partial to the state stored under key through st, settles
// the result with st's Update and writes it back. Concurrent Merges on one
// Store are serialized.
func Merge[S any](ctx context.Context, s *Store, st *state.State[S], table, key string, partial value.Value) (S, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := Load(ctx, s, st, table, key)
	if err != nil {
		return cur, err
	}
	next, err := st.Merge(cur, partial)
	if err != nil {
		return cur, fmt.Errorf("merging %s/%s: %w", table, key, err)
	}
	if next, err = st.Update(next); err != nil {
		return cur, fmt.Errorf("updating %s/%s: %w", table, key, err)
	}
	if err := Put(ctx, s, table, key, next); err != nil {
		return cur, err
	}
	return next, nil
}
