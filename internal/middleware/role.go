package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resourcehub/internal/pkg/response"
)

// RequireRole gates a route on the role the auth middleware stored.
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			response.Error(c, http.StatusUnauthorized, "AUTH_REQUIRED", "authentication required")
			c.Abort()
			return
		}

		if role.(string) != requiredRole {
			response.Error(c, http.StatusForbidden, "PERMISSION_DENIED", "insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return RequireRole("admin")
}
