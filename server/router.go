package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"rationalize/server/handlers"
	"rationalize/server/middleware"
	"rationalize/server/services"
)

// NewRouter собирает gin-роутер со всеми маршрутами API
func NewRouter(entityService *services.EntityService, exportService *services.ExportService, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	entityHandler := handlers.NewEntityHandler(entityService, exportService)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	{
		entities := api.Group("/entities")
		{
			entities.POST("/auto-resolve", entityHandler.HandleAutoResolve)
			entities.POST("/audit/:id/revert", entityHandler.HandleRevert)

			category := entities.Group("/:category")
			{
				category.GET("/resolve", entityHandler.HandleResolve)
				category.POST("/resolve", entityHandler.HandleBulkResolve)
				category.GET("/expand", entityHandler.HandleExpand)
				category.GET("/values", entityHandler.HandleValues)
				category.GET("/mappings", entityHandler.HandleMappings)
				category.GET("/reverse", entityHandler.HandleReverseMappings)
				category.GET("/pending", entityHandler.HandlePendingReviews)
				category.GET("/suggestions", entityHandler.HandleSuggestions)
				category.GET("/audit", entityHandler.HandleAuditLog)
				category.GET("/export", entityHandler.HandleExport)
				category.POST("/merge", entityHandler.HandleMerge)
			}
		}
	}

	return router
}
