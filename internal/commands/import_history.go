package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newImportHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-history <export.json>",
		Short: "Import members, fee claims and payments from a history export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening export: %w", err)
			}
			defer f.Close()

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.History.Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"%d members (%d skipped), %d memberships, %d transactions (%d skipped), %d claims, %d deposits (%d linked)\n",
				sum.Members, sum.SkippedMembers, sum.Memberships, sum.Transactions, sum.SkippedTransactions,
				sum.Claims, sum.Deposits, sum.LinkedDeposits)
			return nil
		},
	}
}
