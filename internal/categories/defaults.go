package categories

import (
	"github.com/shopspring/decimal"

	"github.com/pennywise-dev/pennywise/internal/model"
)

// Uncategorized is assigned to rows that name no category.
const Uncategorized = "Uncategorized"

// DefaultCategories returns the category chart a new project starts with.
func DefaultCategories() []model.Category {
	return []model.Category{
		{Name: "Salary", Type: model.TypeIncome, Description: "Wages and salary"},
		{Name: "Interest", Type: model.TypeIncome, Description: "Bank interest"},
		{Name: "Housing", Type: model.TypeExpense, Description: "Home costs"},
		{Name: "Rent", Type: model.TypeExpense, Parent: "Housing", Budget: decimal.NewFromInt(1500)},
		{Name: "Utilities", Type: model.TypeExpense, Parent: "Housing", Budget: decimal.NewFromInt(200)},
		{Name: "Groceries", Type: model.TypeExpense, Budget: decimal.NewFromInt(500)},
		{Name: "Dining", Type: model.TypeExpense, Budget: decimal.NewFromInt(150)},
		{Name: "Transport", Type: model.TypeExpense, Description: "Fuel, fares and parking"},
		{Name: "Subscriptions", Type: model.TypeExpense, Description: "Recurring services"},
		{Name: "Transfer", Type: model.TypeTransfer, Description: "Moves between own accounts"},
		{Name: Uncategorized, Type: model.TypeExpense},
	}
}
