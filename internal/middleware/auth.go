package middleware

import (
	"strings"

	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/YJLINa/peer-review-form/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminAuth 校验管理者 JWT
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		// 导出文件通过链接下载，允许 query 传 token
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, secret)
		if err != nil {
			logger.Log.Debug("JWT解析错误", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if claims.Role != util.AdminRole {
			util.Forbidden(c)
			c.Abort()
			return
		}

		c.Set("admin", claims)
		c.Next()
	}
}
