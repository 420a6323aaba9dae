package resource

import "github.com/gin-gonic/gin"

type createRequest struct {
	Title       string `json:"title" binding:"required"`
	Abstract    string `json:"abstract"`
	SourceType  string `json:"source_type" binding:"required"`
	ExternalURL string `json:"external_url"`
}

type patchRequest struct {
	Title           *string `json:"title"`
	Abstract        *string `json:"abstract"`
	ExternalURL     *string `json:"external_url"`
	DurationSeconds *int    `json:"duration_seconds"`
}

type listRequest struct {
	Status   string `form:"status"`
	Keyword  string `form:"keyword"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
	Sort     string `form:"sort,default=created_desc"`
}

// toView renders a resource for the given caller: capability hints and file
// metadata are included only for authenticated callers.
func toView(r *Resource, caller *Caller) gin.H {
	v := gin.H{
		"id":             r.ID,
		"title":          r.Title,
		"abstract":       r.Abstract,
		"source_type":    r.SourceType,
		"status":         r.Status,
		"download_count": r.DownloadCount,
		"created_at":     r.CreatedAt,
	}
	if r.PublishedAt != nil {
		v["published_at"] = r.PublishedAt
	}
	if r.Cover.CoverName != "" {
		v["cover_name"] = r.Cover.CoverName
	}
	if r.DurationSeconds != nil {
		v["duration_seconds"] = *r.DurationSeconds
	}
	if r.SourceType == SourceLink {
		v["external_url"] = r.ExternalURL
	}

	if caller != nil {
		v["owner_id"] = r.OwnerID
		v["can_download"] = CanDownload(caller, r)
		v["can_edit"] = CanEdit(caller, r)
		v["can_manage"] = CanManage(caller, r)
		v["can_publish"] = CanPublish(caller, r)
		v["can_archive"] = CanArchive(caller, r)
		v["updated_at"] = r.UpdatedAt
		if r.HasFile() {
			v["file"] = gin.H{
				"id":         r.File.FileID,
				"name":       r.File.FileName,
				"size_bytes": r.File.FileSizeBytes,
				"mime":       r.File.FileMime,
				"sha256":     r.File.FileSHA256,
			}
		}
	}
	return v
}
