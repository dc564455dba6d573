package app

import (
	"tryout_backend/docs"
	"tryout_backend/internal/config"
	"tryout_backend/internal/middleware"
	"tryout_backend/internal/model"
	"tryout_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/tryouts", c.tryout.List)
		authGroup.GET("/tryouts/:id", c.tryout.Get)
		authGroup.GET("/tryouts/:id/results", c.tryout.Results)
		authGroup.GET("/tryouts/:id/attempts", middleware.RoleMiddleware(model.Admin), c.tryout.Attempts)
		authGroup.POST("/tryouts/:id/attempts", c.attempt.Start)

		attempts := authGroup.Group("/attempts/:id")
		{
			attempts.GET("/session", c.attempt.Session)
			attempts.POST("/answer", c.attempt.Answer)
			attempts.POST("/flag", c.attempt.Flag)
			attempts.POST("/navigate", c.attempt.Navigate)
			attempts.POST("/visibility", c.attempt.Visibility)
			attempts.POST("/finish-section", c.attempt.FinishSection)
			attempts.POST("/leave", c.attempt.Leave)
			attempts.GET("/result", c.attempt.Result)
			attempts.GET("/review", c.attempt.ReviewAttempt)
		}
	}
}
