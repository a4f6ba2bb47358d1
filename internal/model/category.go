package model

import "github.com/shopspring/decimal"

// Category groups transactions for summaries and filtering.
type Category struct {
	Name        string          `json:"name"`
	Type        TransactionType `json:"type"`
	Parent      string          `json:"parent,omitempty"` // "" = top-level
	Description string          `json:"description,omitempty"`
	Budget      decimal.Decimal `json:"budget"` // monthly, zero = none
}
