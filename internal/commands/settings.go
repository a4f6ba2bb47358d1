package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pennywise-dev/pennywise/internal/state"
	"github.com/pennywise-dev/pennywise/internal/store"
	"github.com/pennywise-dev/pennywise/internal/tables"
	"github.com/pennywise-dev/pennywise/internal/value"
	"github.com/pennywise-dev/pennywise/internal/views"
)

func newFiltersCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Show or change the saved transaction filters",
	}
	pick := func(p *project) *state.State[views.Filters] { return p.states.Filters }
	cmd.AddCommand(
		newShowCommand(dir, tables.FiltersKey, pick),
		newSetCommand(dir, tables.FiltersKey, pick,
			`Merge a JSON partial into the saved filters. Lists are appended to and
null fields are left alone:

  pennywise filters set '{"categories":["Dining"],"range":{"from":"2025-01-01"}}'`),
		newResetCommand(dir, tables.FiltersKey, pick),
	)
	return cmd
}

func newThemeCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or change the display theme",
	}
	pick := func(p *project) *state.State[views.Theme] { return p.states.Theme }
	cmd.AddCommand(
		newShowCommand(dir, tables.ThemeKey, pick),
		newSetCommand(dir, tables.ThemeKey, pick,
			`Merge a JSON partial into the theme. Unknown modes fall back to "system":

  pennywise theme set '{"mode":"dark"}'`),
		newResetCommand(dir, tables.ThemeKey, pick),
	)
	return cmd
}

func newShowCommand[S any](dir *string, key string, pick func(*project) *state.State[S]) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current value as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), *dir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer p.Close()

			cur, err := store.Load(cmd.Context(), p.store, pick(p), tables.Settings, key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cur)
		},
	}
}

func newSetCommand[S any](dir *string, key string, pick func(*project) *state.State[S], long string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <json>",
		Short: "Merge a JSON partial into the current value",
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partial, err := value.Parse([]byte(args[0]))
			if err != nil {
				return err
			}
			if !partial.IsObject() {
				return fmt.Errorf("expected a JSON object, got %s", partial.Kind())
			}

			p, err := openProject(cmd.Context(), *dir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer p.Close()

			next, err := mergeSetting(cmd.Context(), p, pick(p), key, partial)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), next)
		},
	}
}

func newResetCommand[S any](dir *string, key string, pick func(*project) *state.State[S]) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), *dir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer p.Close()

			empty := pick(p).Empty()
			if err := store.Put(cmd.Context(), p.store, tables.Settings, key, empty); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), empty)
		},
	}
}

func mergeSetting[S any](ctx context.Context, p *project, st *state.State[S], key string, partial value.Value) (S, error) {
	next, err := store.Merge(ctx, p.store, st, tables.Settings, key, partial)
	if err != nil {
		return next, err
	}
	p.logger.Debug("merged setting", "key", key)
	return next, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
