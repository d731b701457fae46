package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"club-reconciliation-backend/internal/app"
	"club-reconciliation-backend/internal/config"
	"club-reconciliation-backend/internal/routes"
)

func main() {
	// Load .env, then the environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.Close()

	r := routes.NewRouter(a.Reconciliation, a.Log, cfg.Server.CORSOrigins)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	a.Log.Info().Str("addr", addr).Msg("listening")
	if err := r.Run(addr); err != nil {
		a.Log.Fatal().Err(err).Msg("server stopped")
	}
}
