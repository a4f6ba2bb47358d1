// Package schema describes the versioned layout of the key/value store: for
// each version, the tables it holds, the record keys each table accepts, the
// Go type stored under them and the secondary indexes to maintain.
//
// Versions are append-only. Once registered a version never changes, so data
// written under version N stays interpretable by code that knows schema N
// after version N+1 exists.
package schema

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"
)

var (
	ErrUnknownVersion = errors.New("schema: unknown version")
	ErrUnknownTable   = errors.New("schema: unknown table")
	ErrUnknownRecord  = errors.New("schema: unknown record key")
	ErrUnknownIndex   = errors.New("schema: unknown index")
	ErrVersionOrder   = errors.New("schema: versions must be appended in increasing order")
	ErrInvalid        = errors.New("schema: invalid definition")
)

// Index is a secondary index over one or more fields of a record. Fields are
// dot-separated paths into the encoded record, e.g. "date" or "window.from".
type Index struct {
	Name   string
	Fields []string
}

// IndexOn builds an Index.
func IndexOn(name string, fields ...string) Index {
	return Index{Name: name, Fields: fields}
}

// Path splits field i into its path segments.
func (ix Index) Path(i int) []string {
	return strings.Split(ix.Fields[i], ".")
}

// Record describes the values stored under keys matching Key.
type Record struct {
	Key     Pattern
	Type    reflect.Type
	Indexes []Index
}

// RecordOf describes records of type T stored under key.
func RecordOf[T any](key Pattern, indexes ...Index) Record {
	return Record{Key: key, Type: reflect.TypeFor[T](), Indexes: indexes}
}

// Table is a named collection of records.
type Table struct {
	Name    string
	Records []Record
}

// Version is one complete description of the store layout.
type Version struct {
	ID     int
	Tables []Table
}

// Registry holds every known version in increasing order.
type Registry struct {
	versions []Version
}

// NewRegistry registers versions in the order given.
func NewRegistry(versions ...Version) (*Registry, error) {
	r := &Registry{}
	for _, v := range versions {
		if err := r.Register(v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends v. Its ID must be greater than every registered ID, and
// the definition must validate. v is copied; later changes to the caller's
// value do not reach the registry.
func (r *Registry) Register(v Version) error {
	if v.ID <= 0 {
		return fmt.Errorf("%w: version id %d must be positive", ErrInvalid, v.ID)
	}
	if latest := r.Latest(); v.ID <= latest {
		if _, err := r.version(v.ID); err == nil {
			return fmt.Errorf("%w: version %d is already registered", ErrVersionOrder, v.ID)
		}
		return fmt.Errorf("%w: version %d after %d", ErrVersionOrder, v.ID, latest)
	}
	if err := validate(v); err != nil {
		return err
	}
	r.versions = append(r.versions, cloneVersion(v))
	return nil
}

// Latest returns the highest registered version, or 0 when empty.
func (r *Registry) Latest() int {
	if len(r.versions) == 0 {
		return 0
	}
	return r.versions[len(r.versions)-1].ID
}

// Versions returns the registered version IDs in increasing order.
func (r *Registry) Versions() []int {
	ids := make([]int, len(r.versions))
	for i, v := range r.versions {
		ids[i] = v.ID
	}
	return ids
}

// Tables returns the table names of a version.
func (r *Registry) Tables(version int) ([]string, error) {
	v, err := r.version(version)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(v.Tables))
	for i, t := range v.Tables {
		names[i] = t.Name
	}
	return names, nil
}

// Table returns a copy of a table definition.
func (r *Registry) Table(version int, table string) (Table, error) {
	t, err := r.table(version, table)
	if err != nil {
		return Table{}, err
	}
	return cloneTable(*t), nil
}

// Lookup returns the record describing key in table at version.
func (r *Registry) Lookup(version int, table, key string) (Record, error) {
	t, err := r.table(version, table)
	if err != nil {
		return Record{}, err
	}
	for _, rec := range t.Records {
		if rec.Key.Match(key) {
			return cloneRecord(rec), nil
		}
	}
	return Record{}, fmt.Errorf("%w: %q in table %q at version %d", ErrUnknownRecord, key, table, version)
}

// Index returns the named index of table at version, with the record it
// belongs to.
func (r *Registry) Index(version int, table, name string) (Index, Record, error) {
	t, err := r.table(version, table)
	if err != nil {
		return Index{}, Record{}, err
	}
	for _, rec := range t.Records {
		for _, ix := range rec.Indexes {
			if ix.Name == name {
				return cloneIndex(ix), cloneRecord(rec), nil
			}
		}
	}
	return Index{}, Record{}, fmt.Errorf("%w: %q on table %q at version %d", ErrUnknownIndex, name, table, version)
}

// Describe writes a plain-text listing of every version.
func (r *Registry) Describe(w io.Writer) error {
	for _, v := range r.versions {
		if _, err := fmt.Fprintf(w, "version %d\n", v.ID); err != nil {
			return err
		}
		for _, t := range v.Tables {
			if _, err := fmt.Fprintf(w, "  table %s\n", t.Name); err != nil {
				return err
			}
			for _, rec := range t.Records {
				if _, err := fmt.Fprintf(w, "    %s -> %s\n", rec.Key, rec.Type); err != nil {
					return err
				}
				for _, ix := range rec.Indexes {
					if _, err := fmt.Fprintf(w, "      index %s (%s)\n", ix.Name, strings.Join(ix.Fields, ", ")); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (r *Registry) version(id int) (*Version, error) {
	for i := range r.versions {
		if r.versions[i].ID == id {
			return &r.versions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, id)
}

func (r *Registry) table(version int, name string) (*Table, error) {
	v, err := r.version(version)
	if err != nil {
		return nil, err
	}
	for i := range v.Tables {
		if v.Tables[i].Name == name {
			return &v.Tables[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q at version %d", ErrUnknownTable, name, version)
}

// validate enforces unique table names, well-formed records and disjoint
// record key spaces across the version.
func validate(v Version) error {
	var errs []error
	tables := make(map[string]bool)
	type placed struct {
		table string
		key   Pattern
	}
	var keys []placed

	for _, t := range v.Tables {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("version %d: table with empty name", v.ID))
			continue
		}
		if tables[t.Name] {
			errs = append(errs, fmt.Errorf("version %d: duplicate table %q", v.ID, t.Name))
		}
		tables[t.Name] = true

		indexes := make(map[string]bool)
		for _, rec := range t.Records {
			if err := rec.Key.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("table %q: %w", t.Name, err))
				continue
			}
			if rec.Type == nil {
				errs = append(errs, fmt.Errorf("table %q: record %q has no type", t.Name, rec.Key))
			}
			for _, ix := range rec.Indexes {
				switch {
				case ix.Name == "":
					errs = append(errs, fmt.Errorf("table %q: record %q has an unnamed index", t.Name, rec.Key))
				case indexes[ix.Name]:
					errs = append(errs, fmt.Errorf("table %q: duplicate index %q", t.Name, ix.Name))
				case len(ix.Fields) == 0 || slices.Contains(ix.Fields, ""):
					errs = append(errs, fmt.Errorf("table %q: index %q needs non-empty fields", t.Name, ix.Name))
				}
				indexes[ix.Name] = true
			}
			for _, other := range keys {
				if other.key.Overlaps(rec.Key) {
					errs = append(errs, fmt.Errorf("version %d: key %q in table %q overlaps %q in table %q",
						v.ID, rec.Key, t.Name, other.key, other.table))
				}
			}
			keys = append(keys, placed{table: t.Name, key: rec.Key})
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func cloneVersion(v Version) Version {
	out := Version{ID: v.ID, Tables: make([]Table, len(v.Tables))}
	for i, t := range v.Tables {
		out.Tables[i] = cloneTable(t)
	}
	return out
}

func cloneTable(t Table) Table {
	out := Table{Name: t.Name, Records: make([]Record, len(t.Records))}
	for i, rec := range t.Records {
		out.Records[i] = cloneRecord(rec)
	}
	return out
}

func cloneRecord(rec Record) Record {
	out := Record{Key: rec.Key, Type: rec.Type, Indexes: make([]Index, len(rec.Indexes))}
	for i, ix := range rec.Indexes {
		out.Indexes[i] = cloneIndex(ix)
	}
	return out
}

func cloneIndex(ix Index) Index {
	return Index{Name: ix.Name, Fields: slices.Clone(ix.Fields)}
}
