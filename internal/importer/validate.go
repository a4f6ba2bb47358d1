package importer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pennywise-dev/pennywise/internal/model"
)

// ValidationError describes one rejected transaction.
type ValidationError struct {
	Row         int // 1-based position in the parsed batch
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("transaction %d: %s", e.Row, e.Description)
}

// CategoryChecker tests whether a category exists.
type CategoryChecker interface {
	Exists(name string) bool
}

// Validate checks every transaction and returns all problems found. Unknown
// categories are accepted when autoCreate is set.
func Validate(txns []model.Transaction, cats CategoryChecker, autoCreate bool) []ValidationError {
	var errs []ValidationError
	cents := decimal.NewFromInt(100)

	for i, txn := range txns {
		row := i + 1

		if txn.Description == "" {
			errs = append(errs, ValidationError{Row: row, Description: "empty description"})
		}

		if scaled := txn.Amount.Mul(cents); !scaled.Equal(scaled.Truncate(0)) {
			errs = append(errs, ValidationError{
				Row:         row,
				Description: fmt.Sprintf("amount %s has more than 2 decimal places", txn.Amount),
			})
		}

		if !txn.Type.Valid() {
			errs = append(errs, ValidationError{
				Row:         row,
				Description: fmt.Sprintf("invalid type %q", txn.Type),
			})
		}

		if txn.Date.IsZero() {
			errs = append(errs, ValidationError{Row: row, Description: "missing date"})
		}

		if strings.Contains(txn.Category, "/") {
			errs = append(errs, ValidationError{
				Row:         row,
				Description: fmt.Sprintf("category %q contains '/'", txn.Category),
			})
		} else if txn.Category != "" && !autoCreate && !cats.Exists(txn.Category) {
			errs = append(errs, ValidationError{
				Row:         row,
				Description: fmt.Sprintf("unknown category %q", txn.Category),
			})
		}
	}
	return errs
}
