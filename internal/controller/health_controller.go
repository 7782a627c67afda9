package controller

import (
	"net/http"

	"github.com/YJLINa/peer-review-form/internal/service"
	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type HealthController struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Roster *service.RosterService
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, roster *service.RosterService) *HealthController {
	return &HealthController{DB: db, Redis: rdb, Roster: roster}
}

// @Summary 健康检查
// @Description 检查数据库、Redis 与设定档状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	components := gin.H{}
	healthy := true

	if c.DB != nil {
		components["database"] = "up"
		sqlDB, err := c.DB.DB()
		if err != nil || sqlDB.PingContext(ctx.Request.Context()) != nil {
			components["database"] = "down"
			healthy = false
		}
	}

	components["redis"] = "up"
	if err := c.Redis.Ping(ctx.Request.Context()).Err(); err != nil {
		components["redis"] = "down"
		healthy = false
	}

	// 设定档缺失不影响存活，只提示管理者
	components["roster"] = "loaded"
	if _, err := c.Roster.Current(); err != nil {
		components["roster"] = "missing"
	}

	if !healthy {
		util.ErrorWithData(ctx, http.StatusServiceUnavailable, "Dependency unavailable", gin.H{"components": components})
		return
	}
	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
	})
}
