package auth

import (
	"github.com/gin-gonic/gin"

	"resourcehub/internal/middleware"
)

// RegisterRoutes mounts login on the public group and account management on
// the protected one.
func RegisterRoutes(public, protected *gin.RouterGroup, h *Handler) {
	public.POST("/auth/login", h.Login)

	protected.GET("/auth/me", h.Me)
	protected.POST("/auth/register", middleware.AdminOnly(), h.Register)
}
