package app

import (
	"github.com/YJLINa/peer-review-form/internal/config"
	"github.com/YJLINa/peer-review-form/internal/middleware"
	"github.com/YJLINa/peer-review-form/pkg/monitoring"
	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 1. 问卷填答（无需登录，以会话ID区分）
	a.registerSurveyRoutes(router, c)

	// 2. 管理者
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerSurveyRoutes(router *gin.Engine, c *controllers) {
	survey := router.Group("/api/survey")
	{
		survey.GET("/reviewers", c.survey.Reviewers)
		survey.POST("/sessions", c.survey.StartSession)
		survey.GET("/sessions/:id", c.survey.GetSession)
		survey.POST("/sessions/:id/identity", c.survey.Identify)
		survey.PUT("/sessions/:id/scores", c.survey.RecordScore)
		survey.POST("/sessions/:id/next", c.survey.Next)
		survey.POST("/sessions/:id/prev", c.survey.Prev)
		survey.POST("/sessions/:id/finalize", c.survey.Finalize)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.POST("/api/admin/login", c.admin.Login)

	admin := router.Group("/api/admin")
	admin.Use(middleware.AdminAuth(cfg.Admin.JWTSecret))
	{
		admin.POST("/config/:kind", c.admin.UploadConfig)
		admin.GET("/archive", c.admin.DownloadArchive)
		admin.POST("/roster/reload", c.admin.ReloadRoster)
		admin.GET("/results", c.admin.ListResults)
		admin.GET("/results/export", c.admin.ExportResults)
		admin.DELETE("/results", c.admin.ClearResults)
		admin.GET("/submissions", c.admin.ListSubmissions)
		admin.GET("/reconcile", c.admin.Reconcile)
	}
}
