package commands

import (
	"github.com/spf13/cobra"

	"github.com/pennywise-dev/pennywise/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var dir string

	rootCmd := &cobra.Command{
		Use:     "pennywise",
		Short:   "Personal finance tracking from bank exports",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "C", ".", "project directory")

	rootCmd.AddCommand(
		newInitCommand(),
		newImportCommand(&dir),
		newTransactionsCommand(&dir),
		newCategoriesCommand(&dir),
		newFiltersCommand(&dir),
		newThemeCommand(&dir),
		newSchemaCommand(),
	)

	return rootCmd
}
