package http

import (
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"pothole-detect/docs"
	"pothole-detect/internal/bootstrap"
	"pothole-detect/internal/transport/http/handler"
	"pothole-detect/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Recovery())

	docs.SwaggerInfo.Title = app.Config.App.Name
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	detectHandler := handler.NewDetectHandler(app.Detector, app.Config.Upload.MaxBytes)
	router.POST("/detect", detectHandler.Detect)

	return router
}
