package commands

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"club-reconciliation-backend/internal/routes"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reconciliation API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Config.Env == "production" {
				gin.SetMode(gin.ReleaseMode)
			}
			if port == 0 {
				port = a.Config.Server.Port
			}

			r := routes.NewRouter(a.Reconciliation, a.Log, a.Config.Server.CORSOrigins)
			addr := fmt.Sprintf(":%d", port)
			a.Log.Info().Str("addr", addr).Msg("listening")
			return r.Run(addr)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from SERVER_PORT)")

	return cmd
}
