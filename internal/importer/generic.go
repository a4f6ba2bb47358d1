package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pennywise-dev/pennywise/internal/model"
)

// GenericParser reads pennywise's own CSV layout:
//
//	date,description,amount,category,type,account,reference
//
// Dates are 2006-01-02 in UTC. An empty type is inferred from the sign of
// the amount.
type GenericParser struct{}

const (
	genericDateFormat = "2006-01-02"
	genericNumFields  = 7
	genericColDate    = 0
	genericColDesc    = 1
	genericColAmount  = 2
	genericColCat     = 3
	genericColType    = 4
	genericColAccount = 5
	genericColRef     = 6
)

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

// Parse reads a generic CSV and returns Transactions.
func (p *GenericParser) Parse(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = genericNumFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading generic CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var txns []model.Transaction
	for i, rec := range records[1:] {
		txn, err := parseGenericRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func parseGenericRow(rec []string) (model.Transaction, error) {
	date, err := time.ParseInLocation(genericDateFormat, rec[genericColDate], time.UTC)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", rec[genericColDate], err)
	}

	amount, err := decimal.NewFromString(rec[genericColAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", rec[genericColAmount], err)
	}

	typ := model.TransactionType(strings.ToLower(rec[genericColType]))
	if typ == "" {
		typ = model.TypeForAmount(amount)
	}

	return model.Transaction{
		Date:        date,
		Description: strings.TrimSpace(rec[genericColDesc]),
		Amount:      amount,
		Category:    strings.TrimSpace(rec[genericColCat]),
		Type:        typ,
		Account:     rec[genericColAccount],
		Reference:   rec[genericColRef],
	}, nil
}
