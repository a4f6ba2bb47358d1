// Package categories manages the category chart: its CSV file, in-memory
// lookup and the copy kept in the store.
package categories

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pennywise-dev/pennywise/internal/id"
	"github.com/pennywise-dev/pennywise/internal/model"
	"github.com/pennywise-dev/pennywise/internal/store"
	"github.com/pennywise-dev/pennywise/internal/tables"
)

// FileName is the category chart's path below a project root.
const FileName = "categories.csv"

// Service provides in-memory lookup over the category chart.
type Service struct {
	cats   []model.Category
	byName map[string]model.Category
}

// NewService creates a Service from a slice of categories.
func NewService(cats []model.Category) *Service {
	byName := make(map[string]model.Category, len(cats))
	for _, c := range cats {
		byName[c.Name] = c
	}
	return &Service{cats: cats, byName: byName}
}

// Load reads categories.csv from a project root and returns a Service.
func Load(root string) (*Service, error) {
	f, err := os.Open(filepath.Join(root, FileName))
	if err != nil {
		return nil, fmt.Errorf("opening categories: %w", err)
	}
	defer f.Close()

	cats, err := ReadCategories(f)
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}
	return NewService(cats), nil
}

// FromStore builds a Service from the categories held in the store.
func FromStore(ctx context.Context, s *store.Store) (*Service, error) {
	kvs, err := store.List[model.Category](ctx, s, tables.Categories, "")
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	cats := make([]model.Category, len(kvs))
	for i, kv := range kvs {
		cats[i] = kv.Value
	}
	return NewService(cats), nil
}

// All returns all categories.
func (s *Service) All() []model.Category {
	return s.cats
}

// Get returns a category by name.
func (s *Service) Get(name string) (model.Category, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Exists reports whether a category name exists.
func (s *Service) Exists(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// ByType returns all categories of the given type.
func (s *Service) ByType(typ model.TransactionType) []model.Category {
	var result []model.Category
	for _, c := range s.cats {
		if c.Type == typ {
			result = append(result, c)
		}
	}
	return result
}

// Add appends c. It reports false when the name is already taken.
func (s *Service) Add(c model.Category) bool {
	if s.Exists(c.Name) {
		return false
	}
	s.cats = append(s.cats, c)
	s.byName[c.Name] = c
	return true
}

// Save writes the chart to categories.csv below root.
func (s *Service) Save(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating project dir: %w", err)
	}

	f, err := os.Create(filepath.Join(root, FileName))
	if err != nil {
		return fmt.Errorf("creating categories file: %w", err)
	}
	defer f.Close()

	if err := WriteCategories(f, s.cats); err != nil {
		return fmt.Errorf("writing categories: %w", err)
	}
	return nil
}

// Seed writes every category into the store, replacing same-named ones.
func (s *Service) Seed(ctx context.Context, st *store.Store) error {
	items := make([]store.KV[model.Category], len(s.cats))
	for i, c := range s.cats {
		key, err := id.CategoryKey(c.Name)
		if err != nil {
			return fmt.Errorf("seeding categories: %w", err)
		}
		items[i] = store.KV[model.Category]{Key: key, Value: c}
	}
	if err := store.PutBatch(ctx, st, tables.Categories, items); err != nil {
		return fmt.Errorf("seeding categories: %w", err)
	}
	return nil
}
