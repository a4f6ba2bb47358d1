package categories

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pennywise-dev/pennywise/internal/model"
)

const (
	numFields = 5
	colName   = 0
	colType   = 1
	colParent = 2
	colBudget = 3
	colDesc   = 4
)

// ReadCategories reads categories.csv.
func ReadCategories(r io.Reader) ([]model.Category, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading categories CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var cats []model.Category
	for i, rec := range records[1:] {
		cat, err := UnmarshalCategory(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// WriteCategories writes categories.csv.
func WriteCategories(w io.Writer, cats []model.Category) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"name", "type", "parent", "budget", "description"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, cat := range cats {
		if err := cw.Write(MarshalCategory(cat)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalCategory converts a Category to a CSV row.
func MarshalCategory(cat model.Category) []string {
	row := make([]string, numFields)
	row[colName] = cat.Name
	row[colType] = string(cat.Type)
	row[colParent] = cat.Parent
	if !cat.Budget.IsZero() {
		row[colBudget] = cat.Budget.StringFixed(2)
	}
	row[colDesc] = cat.Description
	return row
}

// UnmarshalCategory converts a CSV row to a Category.
func UnmarshalCategory(record []string) (model.Category, error) {
	if len(record) != numFields {
		return model.Category{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	if record[colName] == "" || strings.Contains(record[colName], "/") {
		return model.Category{}, fmt.Errorf("invalid category name %q", record[colName])
	}

	typ := model.TransactionType(record[colType])
	if !typ.Valid() {
		return model.Category{}, fmt.Errorf("invalid category type %q", record[colType])
	}

	var budget decimal.Decimal
	if record[colBudget] != "" {
		var err error
		budget, err = decimal.NewFromString(record[colBudget])
		if err != nil {
			return model.Category{}, fmt.Errorf("parsing budget %q: %w", record[colBudget], err)
		}
	}

	return model.Category{
		Name:        record[colName],
		Type:        typ,
		Parent:      record[colParent],
		Budget:      budget,
		Description: record[colDesc],
	}, nil
}
