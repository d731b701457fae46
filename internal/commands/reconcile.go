package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Retry matching for every pending or unresolved transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.Reconciliation.ReconcilePending(cmd.Context())
			if counts != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%d transactions, %d matched, %d unresolved, %d debitor\n",
					counts.Total, counts.Matched, counts.Unresolved, counts.Debitor)
			}
			return err
		},
	}
}
