package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"club-reconciliation-backend/internal/app"
	"club-reconciliation-backend/internal/buildinfo"
	"club-reconciliation-backend/internal/config"
)

// openApp is replaced in tests to run commands against a scratch database.
var openApp = app.New

type rootOptions struct {
	envFile string
}

func (o *rootOptions) open() (*app.App, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return nil, err
	}
	return openApp(cfg)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "clubrecon",
		Short:   "Reconcile club bank statements with member fees",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "env file read before the environment")

	rootCmd.AddCommand(
		newIngestCommand(opts),
		newReconcileCommand(opts),
		newImportHistoryCommand(opts),
		newParseReferenceCommand(),
		newServeCommand(opts),
	)

	return rootCmd
}
