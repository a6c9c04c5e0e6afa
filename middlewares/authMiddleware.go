package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lealcafe/ventas_backend/utils"
)

// AuthMiddleware accepts "Authorization: Bearer <jwt>" as an alternative to the session token.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		customClaim, _ := validate.Claims.(*utils.JwtCustomClaim)

		ctx := c.Request.Context()
		if customClaim != nil {
			if _, ok := utils.GetUsernameFromContext(ctx); !ok {
				ctx = utils.SetUsernameInContext(ctx, customClaim.Username)
			}
			ctx = utils.SetUserIdInContext(ctx, customClaim.ID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
