package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pennywise-dev/pennywise/internal/categories"
	"github.com/pennywise-dev/pennywise/internal/id"
	"github.com/pennywise-dev/pennywise/internal/model"
	"github.com/pennywise-dev/pennywise/internal/store"
	"github.com/pennywise-dev/pennywise/internal/tables"
)

func newCategoriesCommand(dir *string) *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List or add categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), *dir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer p.Close()
			return listCategories(cmd.Context(), p, model.TransactionType(typ), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only list categories of this type")

	cmd.AddCommand(newCategoriesAddCommand(dir))
	return cmd
}

func newCategoriesAddCommand(dir *string) *cobra.Command {
	var cat model.Category
	var typ, budget string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat.Name = args[0]
			cat.Type = model.TransactionType(typ)
			if budget != "" {
				b, err := decimal.NewFromString(budget)
				if err != nil {
					return fmt.Errorf("parsing --budget: %w", err)
				}
				cat.Budget = b
			}

			p, err := openProject(cmd.Context(), *dir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer p.Close()
			if err := addCategory(cmd.Context(), p, cat); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added category %s\n", cat.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(model.TypeExpense), "income, expense or transfer")
	cmd.Flags().StringVar(&cat.Parent, "parent", "", "parent category")
	cmd.Flags().StringVar(&budget, "budget", "", "monthly budget")
	cmd.Flags().StringVar(&cat.Description, "description", "", "description")

	return cmd
}

func listCategories(ctx context.Context, p *project, typ model.TransactionType, out io.Writer) error {
	svc, err := categories.FromStore(ctx, p.store)
	if err != nil {
		return err
	}
	cats := svc.All()
	if typ != "" {
		if !typ.Valid() {
			return fmt.Errorf("unknown transaction type %q", typ)
		}
		cats = svc.ByType(typ)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tPARENT\tBUDGET")
	for _, c := range cats {
		budget := ""
		if !c.Budget.IsZero() {
			budget = formatAmount(c.Budget, p.cfg.Currency)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Type, c.Parent, budget)
	}
	return w.Flush()
}

func addCategory(ctx context.Context, p *project, cat model.Category) error {
	row := categories.MarshalCategory(cat)
	if _, err := categories.UnmarshalCategory(row); err != nil {
		return err
	}

	svc, err := categories.FromStore(ctx, p.store)
	if err != nil {
		return err
	}
	if cat.Parent != "" && !svc.Exists(cat.Parent) {
		return fmt.Errorf("unknown parent category %q", cat.Parent)
	}
	key, err := id.CategoryKey(cat.Name)
	if err != nil {
		return err
	}
	if !svc.Add(cat) {
		return fmt.Errorf("category %q already exists", cat.Name)
	}
	if err := store.Put(ctx, p.store, tables.Categories, key, cat); err != nil {
		return err
	}
	if err := svc.Save(p.root); err != nil {
		return err
	}
	return commitProject(ctx, p, "categories: add "+cat.Name)
}
