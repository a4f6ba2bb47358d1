package commands

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pennywise-dev/pennywise/internal/model"
	"github.com/pennywise-dev/pennywise/internal/store"
	"github.com/pennywise-dev/pennywise/internal/tables"
	"github.com/pennywise-dev/pennywise/internal/views"
)

const dateFormat = "2006-01-02"

type txnQuery struct {
	from, to string
	typ      string
	category string
	search   string
	saved    bool
}

func newTransactionsCommand(dir *string) *cobra.Command {
	var q txnQuery

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txns"},
		Short:   "List stored transactions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), *dir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer p.Close()
			return runTransactions(cmd.Context(), p, q, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&q.from, "from", "", "first date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.to, "to", "", "last date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.typ, "type", "", "income, expense or transfer")
	cmd.Flags().StringVar(&q.category, "category", "", "category name")
	cmd.Flags().StringVar(&q.search, "search", "", "case-insensitive description match")
	cmd.Flags().BoolVar(&q.saved, "saved", false, "apply the saved filters as well")

	return cmd
}

func runTransactions(ctx context.Context, p *project, q txnQuery, out io.Writer) error {
	from, to, err := dateBounds(q.from, q.to)
	if err != nil {
		return err
	}
	if q.typ != "" && !model.TransactionType(q.typ).Valid() {
		return fmt.Errorf("unknown transaction type %q", q.typ)
	}

	var kvs []store.KV[model.Transaction]
	switch {
	case q.category != "":
		lo, hi := compoundRange(q.category, from, to)
		kvs, err = store.Query[model.Transaction](ctx, p.store, tables.Transactions, tables.ByCategory, lo, hi)
	case q.typ != "":
		lo, hi := compoundRange(q.typ, from, to)
		kvs, err = store.Query[model.Transaction](ctx, p.store, tables.Transactions, tables.ByType, lo, hi)
	default:
		kvs, err = store.Query[model.Transaction](ctx, p.store, tables.Transactions, tables.ByDate, from, to)
	}
	if err != nil {
		return err
	}

	keep := func(model.Transaction) bool { return true }
	if q.saved {
		f, err := store.Load(ctx, p.store, p.states.Filters, tables.Settings, tables.FiltersKey)
		if err != nil {
			return err
		}
		keep = savedFilter(f)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tDESCRIPTION\tCATEGORY\tTYPE\tAMOUNT\t")
	total := decimal.Zero
	shown := 0
	for _, kv := range kvs {
		txn := kv.Value
		if q.typ != "" && string(txn.Type) != q.typ {
			continue
		}
		if q.search != "" && !containsFold(txn.Description, q.search) {
			continue
		}
		if !keep(txn) {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			txn.Date.Format(dateFormat), txn.Description, txn.Category, txn.Type,
			formatAmount(txn.Amount, p.cfg.Currency))
		total = total.Add(txn.Amount)
		shown++
	}
	fmt.Fprintf(w, "\t%d transactions\t\t\t%s\t\n", shown, formatAmount(total, p.cfg.Currency))
	return w.Flush()
}

// dateBounds turns inclusive YYYY-MM-DD bounds into a half-open range over
// the RFC 3339 date index.
func dateBounds(from, to string) (string, string, error) {
	var lo, hi string
	if from != "" {
		d, err := time.Parse(dateFormat, from)
		if err != nil {
			return "", "", fmt.Errorf("parsing --from: %w", err)
		}
		lo = d.Format(dateFormat)
	}
	if to != "" {
		d, err := time.Parse(dateFormat, to)
		if err != nil {
			return "", "", fmt.Errorf("parsing --to: %w", err)
		}
		hi = d.AddDate(0, 0, 1).Format(dateFormat)
	}
	if lo != "" && hi != "" && lo >= hi {
		return "", "", fmt.Errorf("--from %s is after --to %s", from, to)
	}
	return lo, hi, nil
}

// compoundRange bounds an index whose value is prefix followed by a date.
func compoundRange(prefix, from, to string) (string, string) {
	lo := prefix + store.IndexSep + from
	hi := prefix + store.IndexSep + "\x7f"
	if to != "" {
		hi = prefix + store.IndexSep + to
	}
	return lo, hi
}

func savedFilter(f views.Filters) func(model.Transaction) bool {
	return func(txn model.Transaction) bool {
		if f.Query != "" && !containsFold(txn.Description, f.Query) {
			return false
		}
		if len(f.Categories) > 0 && !slices.Contains(f.Categories, txn.Category) {
			return false
		}
		if len(f.Types) > 0 && !slices.Contains(f.Types, txn.Type) {
			return false
		}
		day := txn.Date.Format(dateFormat)
		if f.Range.From != "" && day < f.Range.From {
			return false
		}
		if f.Range.To != "" && day > f.Range.To {
			return false
		}
		return true
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
