package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"club-reconciliation-backend/internal/app"
	"club-reconciliation-backend/internal/models"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <statement.csv>...",
		Short: "Ingest bank statements and match their transactions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			for _, path := range args {
				if err := runIngest(cmd, a, path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func runIngest(cmd *cobra.Command, a *app.App, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	src, err := a.Reconciliation.IngestStatement(cmd.Context(), filepath.Base(path), f)
	if err != nil {
		return err
	}
	printSource(cmd.OutOrStdout(), src)
	return nil
}

func printSource(w io.Writer, src *models.TransactionSource) {
	fmt.Fprintf(w, "%s: %d rows, %d new, %d skipped, %d matched, %d unresolved, %d debitor\n",
		src.Filename, src.TotalRows, src.CreatedCount, src.SkippedCount,
		src.MatchedCount, src.UnresolvedCount, src.DebitorCount)
}
