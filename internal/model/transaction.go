package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction's direction of money.
type TransactionType string

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}
	return false
}

// Transaction is one parsed row of a transaction export.
type Transaction struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"` // negative = money out
	Category    string          `json:"category"`
	Type        TransactionType `json:"type"`
	Account     string          `json:"account,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
}

// TypeForAmount infers a type from the sign of amount.
func TypeForAmount(amount decimal.Decimal) TransactionType {
	if amount.IsNegative() {
		return TypeExpense
	}
	return TypeIncome
}
