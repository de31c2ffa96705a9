package routes

import (
	"example.com/backstage/services/repeater/api/handlers"
	"example.com/backstage/services/repeater/api/middleware"
	"example.com/backstage/services/repeater/internal/models"
	"example.com/backstage/services/repeater/internal/repository"
	"example.com/backstage/services/repeater/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRoutes sets up all the routes for the server
func SetupRoutes(r *gin.Engine, svc service.Service, repo repository.Repository, log *logrus.Logger) {
	// Health check
	r.GET("/health", handlers.HealthCheck)

	api := r.Group("/api/v1")

	repeaterHandler := handlers.NewRepeaterHandler(svc, log)
	repeaters := api.Group("/repeaters")
	{
		// Device-facing ingestion, authorized per-device via X-Device-Key
		repeaters.POST("/activity", repeaterHandler.IngestActivity)

		// Dashboard views
		repeaters.GET("/status", repeaterHandler.GetStatus)
		repeaters.GET("/history", repeaterHandler.GetHistory)
		repeaters.GET("/metrics", repeaterHandler.GetMetrics)

		// Raw event listing for operators
		repeaters.GET("/activity",
			middleware.APIKeyAuth(repo, log, models.ViewerAuthLevel),
			repeaterHandler.ListActivities)
	}
}
