package resource

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts read endpoints on the optional-auth group (anonymous
// callers see published resources only) and mutations plus download/preview
// on the authenticated group.
func RegisterRoutes(public, protected *gin.RouterGroup, h *Handler) {
	pub := public.Group("/resources")
	{
		pub.GET("", h.List)
		pub.GET("/:id", h.Get)
	}

	res := protected.Group("/resources")
	{
		res.POST("", h.Create)
		res.PATCH("/:id", h.Patch)
		res.DELETE("/:id", h.Delete)

		res.POST("/:id/upload", h.Upload)
		res.POST("/:id/cover", h.UploadCover)

		res.POST("/:id/attachments", h.AddAttachment)
		res.GET("/:id/attachments", h.ListAttachments)
		res.DELETE("/:id/attachments/:attachment_id", h.DeleteAttachment)

		res.POST("/:id/publish", h.Publish)
		res.POST("/:id/archive", h.Archive)

		res.GET("/:id/download", h.Download)
		res.GET("/:id/preview", h.Preview)
	}
}
