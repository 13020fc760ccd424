package middleware

import (
	"net/http"
	"strings"

	"mnas/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 校验认证令牌。除标准 Bearer 头外也接受 ?token= 查询参数，
// 原生播放器发起 Range 请求时无法自定义请求头。
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				utils.Error(c, http.StatusUnauthorized, "认证令牌格式错误")
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			utils.Error(c, http.StatusUnauthorized, "未提供认证令牌")
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(c, http.StatusUnauthorized, "认证令牌无效或已过期")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	}
}
