// Package tables is the application's store layout: every schema version
// and the migrations between them.
package tables

import (
	"context"
	"fmt"

	"github.com/pennywise-dev/pennywise/internal/id"
	"github.com/pennywise-dev/pennywise/internal/model"
	"github.com/pennywise-dev/pennywise/internal/progress"
	"github.com/pennywise-dev/pennywise/internal/schema"
	"github.com/pennywise-dev/pennywise/internal/store"
	"github.com/pennywise-dev/pennywise/internal/views"
)

// Table names.
const (
	Transactions = "transactions"
	Categories   = "categories"
	Settings     = "settings"
	Imports      = "imports"
)

// Index names on Transactions.
const (
	ByDate     = "by_date"
	ByType     = "by_type"
	ByCategory = "by_category"
)

// TransactionSeq is the sequence transaction keys are numbered from.
const TransactionSeq = "transactions"

// Record keys in Settings.
const (
	FiltersKey = "filters"
	ThemeKey   = "theme"
)

func v1() schema.Version {
	return schema.Version{ID: 1, Tables: []schema.Table{
		{Name: Transactions, Records: []schema.Record{
			schema.RecordOf[model.Transaction](id.TransactionPattern,
				schema.IndexOn(ByDate, "date"),
				schema.IndexOn(ByType, "type", "date")),
		}},
		{Name: Categories, Records: []schema.Record{
			schema.RecordOf[model.Category](id.CategoryPattern),
		}},
		{Name: Settings, Records: []schema.Record{
			schema.RecordOf[views.Filters](FiltersKey),
			schema.RecordOf[views.Theme](ThemeKey),
		}},
	}}
}

func v2() schema.Version {
	v := v1()
	v.ID = 2
	v.Tables[0].Records[0].Indexes = append(v.Tables[0].Records[0].Indexes,
		schema.IndexOn(ByCategory, "category", "date"))
	v.Tables = append(v.Tables, schema.Table{Name: Imports, Records: []schema.Record{
		schema.RecordOf[progress.Progress](id.ImportPattern),
	}})
	return v
}

// Schema returns the registry of every version, oldest first.
func Schema() (*schema.Registry, error) {
	reg, err := schema.NewRegistry(v1(), v2())
	if err != nil {
		return nil, fmt.Errorf("building schema: %w", err)
	}
	return reg, nil
}

// Migrations returns the data migrations between versions.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			To:   2,
			Name: "index transactions by category",
			Apply: func(ctx context.Context, s *store.Store) error {
				_, err := s.Reindex(ctx, Transactions)
				return err
			},
		},
	}
}

// Open layers a Store with this layout over backend, migrating as needed.
func Open(ctx context.Context, backend store.Backend, opts ...store.Option) (*store.Store, error) {
	reg, err := Schema()
	if err != nil {
		return nil, err
	}
	opts = append([]store.Option{store.WithMigrations(Migrations()...)}, opts...)
	return store.Open(ctx, backend, reg, opts...)
}
