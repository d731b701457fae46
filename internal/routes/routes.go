package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	handler "club-reconciliation-backend/internal/handlers"
	"club-reconciliation-backend/internal/logger"
	service "club-reconciliation-backend/internal/services/reconciliation"
)

// CORS allows the review frontend at origins to call the API.
func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// RequestLogger stores log in each request context and logs the request
// once it is served.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), log))

		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// NewRouter builds the API engine with recovery, request logging and CORS.
func NewRouter(reconService *service.ReconciliationService, log zerolog.Logger, origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), CORS(origins))
	RegisterRoutes(r, reconService)
	return r
}

func RegisterRoutes(r *gin.Engine, reconService *service.ReconciliationService) {
	reconHandler := handler.NewReconciliationHandler(reconService)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Statement sources
	sources := api.Group("/sources")
	sources.POST("/upload", reconHandler.Upload)
	sources.GET("/:sourceId", reconHandler.GetSource)
	sources.GET("/:sourceId/transactions", reconHandler.ListTransactions)

	api.POST("/reconcile", reconHandler.Reconcile)

	// Transaction-level routes
	tx := api.Group("/transactions")
	tx.POST("/:id/match", reconHandler.MatchTransaction)
	tx.POST("/:id/assign", reconHandler.AssignTransaction)

	api.GET("/references/parse", reconHandler.ParseReference)
}
