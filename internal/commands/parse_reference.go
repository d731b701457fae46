package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"club-reconciliation-backend/internal/services/reference"
)

func newParseReferenceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse-reference <text>...",
		Short: "Show which member number a payment reference names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := reference.Parse(strings.Join(args, " "))
			if !res.Found {
				fmt.Fprintf(cmd.OutOrStdout(), "no member number (score %d)\n", res.Score)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "member %d (score %d)\n", res.MemberNumber, res.Score)
			return nil
		},
	}
}
