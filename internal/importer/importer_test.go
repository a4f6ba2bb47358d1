package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennywise-dev/pennywise/internal/model"
)

func TestGenericParser_Parse(t *testing.T) {
	f, err := os.Open("../../testdata/transactions.csv")
	require.NoError(t, err)
	defer f.Close()

	p := &GenericParser{}
	txns, err := p.Parse(f)
	require.NoError(t, err)
	require.Len(t, txns, 6)

	assert.Equal(t, "ACME PAYROLL", txns[0].Description)
	assert.Equal(t, "3200.00", txns[0].Amount.StringFixed(2))
	assert.Equal(t, model.TypeIncome, txns[0].Type)
	assert.Equal(t, "Salary", txns[0].Category)
	assert.Equal(t, "PAY-0102", txns[0].Reference)
	assert.Equal(t, "2025-01-02", txns[0].Date.Format("2006-01-02"))

	// quoted field with a comma, type inferred from sign
	assert.Equal(t, "CAFE ROMA, DOWNTOWN", txns[3].Description)
	assert.Equal(t, model.TypeExpense, txns[3].Type)
	assert.Equal(t, "credit", txns[3].Account)

	assert.Equal(t, model.TypeTransfer, txns[4].Type)
}

func TestGenericParser_EmptyFile(t *testing.T) {
	p := &GenericParser{}
	txns, err := p.Parse(strings.NewReader("date,description,amount,category,type,account,reference\n"))
	require.NoError(t, err)
	assert.Nil(t, txns)
}

func TestGenericParser_Errors(t *testing.T) {
	header := "date,description,amount,category,type,account,reference\n"
	tests := []struct {
		name    string
		row     string
		wantErr string
	}{
		{"bad date", "03/01/2025,x,1.00,,,,\n", "parsing date"},
		{"bad amount", "2025-03-01,x,abc,,,,\n", "parsing amount"},
		{"short row", "2025-03-01,x,1.00\n", "wrong number of fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&GenericParser{}).Parse(strings.NewReader(header + tt.row))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestChaseParser_Parse(t *testing.T) {
	data, err := os.ReadFile("../../testdata/chase_checking.csv")
	require.NoError(t, err)

	p := &ChaseParser{}
	txns, err := p.Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Len(t, txns, 6)

	// First: GITHUB subscription
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", txns[0].Description)
	assert.Equal(t, "-4.00", txns[0].Amount.StringFixed(2))
	assert.Equal(t, model.TypeExpense, txns[0].Type)
	assert.Equal(t, []string{"ach_debit"}, txns[0].Tags)
	assert.Equal(t, 3, txns[0].Date.Day())

	// Transfer to savings
	assert.Equal(t, model.TypeTransfer, txns[2].Type)

	// Fourth: ACME income (positive)
	assert.Equal(t, "ACME CONSULTING INVOICE 1042", txns[3].Description)
	assert.Equal(t, model.TypeIncome, txns[3].Type)
	assert.Equal(t, "3500.00", txns[3].Amount.StringFixed(2))

	assert.Equal(t, 22, txns[5].Date.Day())
}

func TestChaseParser_Reference(t *testing.T) {
	data, err := os.ReadFile("../../testdata/chase_checking.csv")
	require.NoError(t, err)

	txns, err := (&ChaseParser{}).Parse(strings.NewReader(string(data)))
	require.NoError(t, err)

	// Reference format: chase_YYYYMMDD_<prefix>
	assert.Equal(t, "chase_20250103_GITHUBPROS", txns[0].Reference)
}

func TestChaseParser_BadDate(t *testing.T) {
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\nDEBIT,NOTADATE,desc,-4.00,ACH_DEBIT,100.00,\n"
	_, err := (&ChaseParser{}).Parse(strings.NewReader(csv))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing date")
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := DefaultRegistry()
	require.NotNil(t, r.Get("GENERIC"))
	assert.Equal(t, "chase", r.Get("Chase").Format())
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&GenericParser{})
	assert.Panics(t, func() { r.Register(&GenericParser{}) })
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(filepath.Join(importDir, "processed"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "jan.csv"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "FEB.CSV"), []byte("ab"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "notes.txt"), []byte("x"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "FEB.CSV", files[0].Name)
	assert.Equal(t, int64(2), files[0].Size)
	assert.Equal(t, "jan.csv", files[1].Name)
}

func TestScan_NoDir(t *testing.T) {
	files, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "jan.csv"), []byte("a"), 0o644))

	require.NoError(t, MarkProcessed(dir, "jan.csv"))

	assert.NoFileExists(t, filepath.Join(importDir, "jan.csv"))
	assert.FileExists(t, filepath.Join(importDir, "processed", "jan.csv"))
}
