package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/utils"
)

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession rejects requests that carry neither a session token nor a valid JWT.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if username, ok := utils.GetUsernameFromContext(c.Request.Context()); ok && username != "" {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}
