package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/darshan-hindocha/plexe-technical/internal/handlers"
)

type RouterConfig struct {
	ModelHandler   *handlers.ModelHandler
	PredictHandler *handlers.PredictHandler
	StatusHandler  *handlers.StatusHandler
	CORSOrigins    []string
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	if cfg.MaxUploadBytes > 0 {
		router.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxUploadBytes)
			c.Next()
		})
	}

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api/v1")
	{
		api.GET("/healthcheck", handlers.HealthCheck)
		api.GET("/status", cfg.StatusHandler.Status)

		// Registry
		api.POST("/models/upload", cfg.ModelHandler.Upload)
		api.POST("/models/preview", cfg.ModelHandler.Preview)
		api.GET("/models", cfg.ModelHandler.List)
		api.GET("/models/:id", cfg.ModelHandler.Get)
		api.GET("/models/:id/versions", cfg.ModelHandler.GetVersions)
		api.DELETE("/models/:id", cfg.ModelHandler.Delete)

		// Inference
		api.POST("/models/:id/predict", cfg.PredictHandler.Predict)
		api.POST("/models/:id/predict/batch", cfg.PredictHandler.PredictBatch)
		api.POST("/models/:id/validate", cfg.PredictHandler.Validate)
	}

	return router
}
