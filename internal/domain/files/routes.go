package files

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the byte-serving endpoints. Both are public: the
// signed endpoint carries its own proof, and covers are world readable.
func RegisterRoutes(public *gin.RouterGroup, h *Handler) {
	f := public.Group("/files")
	{
		f.GET("/signed/:file_id", h.Signed)
		f.GET("/cover/:name", h.Cover)
	}
}
