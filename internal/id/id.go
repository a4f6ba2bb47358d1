// Package id formats and parses the record keys used in the store.
package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pennywise-dev/pennywise/internal/schema"
)

// Key patterns of the stored records.
const (
	TransactionPattern schema.Pattern = "transaction/<index>"
	CategoryPattern    schema.Pattern = "category/<name>"
	ImportPattern      schema.Pattern = "import/<name>"
)

const (
	transactionPrefix = "transaction/"
	importPrefix      = "import/"
)

// TransactionPrefix is the key prefix shared by every transaction.
func TransactionPrefix() string { return transactionPrefix }

// TransactionKey returns a transaction key like "transaction/000042".
// Zero padding keeps key order equal to import order. seq must not be
// negative.
func TransactionKey(seq int) string {
	key, err := TransactionPattern.Expand(fmt.Sprintf("%06d", seq))
	if err != nil {
		panic(fmt.Sprintf("transaction key for sequence %d: %v", seq, err))
	}
	return key
}

// ParseTransactionKey returns the sequence number of a transaction key.
func ParseTransactionKey(key string) (int, error) {
	rest, ok := strings.CutPrefix(key, transactionPrefix)
	if !ok || rest == "" {
		return 0, fmt.Errorf("invalid transaction key: %q", key)
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid transaction key: %q", key)
		}
	}
	seq, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid sequence in transaction key %q: %w", key, err)
	}
	return seq, nil
}

// CategoryKey returns the key of a category, e.g. "category/Groceries".
// Names that cannot form a key, such as "" or ones holding a slash, are an
// error.
func CategoryKey(name string) (string, error) {
	key, err := CategoryPattern.Expand(name)
	if err != nil {
		return "", fmt.Errorf("category %q: %w", name, err)
	}
	return key, nil
}

// ImportKey returns the key of an import run's progress record. Run IDs
// from NewRunID always form a valid key.
func ImportKey(runID string) string {
	key, err := ImportPattern.Expand(runID)
	if err != nil {
		panic(fmt.Sprintf("import key for run %q: %v", runID, err))
	}
	return key
}

// ImportPrefix is the key prefix shared by every import run.
func ImportPrefix() string { return importPrefix }

// NewRunID returns a fresh import run ID.
func NewRunID() string {
	return uuid.NewString()
}
