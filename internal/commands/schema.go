package commands

import (
	"github.com/spf13/cobra"

	"github.com/pennywise-dev/pennywise/internal/tables"
)

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Describe every store schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := tables.Schema()
			if err != nil {
				return err
			}
			return reg.Describe(cmd.OutOrStdout())
		},
	}
}
