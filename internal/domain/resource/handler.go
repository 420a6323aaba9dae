package resource

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resourcehub/internal/domain/auth"
	"resourcehub/internal/pkg/response"
	"resourcehub/internal/preview"
	"resourcehub/internal/storage"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// callerFrom reads the identity the auth middleware stored on the context.
// Returns nil for anonymous requests (optional-auth routes).
func callerFrom(c *gin.Context) *Caller {
	id, exists := c.Get("user_id")
	if !exists {
		return nil
	}
	userID, ok := id.(int64)
	if !ok || userID == 0 {
		return nil
	}
	return &Caller{ID: userID, Role: auth.UserRole(c.GetString("role"))}
}

func resourceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid resource id")
		return 0, false
	}
	return id, true
}

// respondError translates domain and storage errors into the stable error
// taxonomy. Anything unclassified becomes a generic internal error without
// leaking details.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAttachmentNotFound),
		errors.Is(err, ErrNoFile), errors.Is(err, storage.ErrNotFound):
		response.Error(c, http.StatusNotFound, "RESOURCE_NOT_FOUND", "resource not found")
	case errors.Is(err, ErrPermissionDenied):
		response.Error(c, http.StatusForbidden, "PERMISSION_DENIED", "you are not allowed to perform this action")
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrFileTypeNotAllowed):
		response.Error(c, http.StatusUnsupportedMediaType, "FILE_TYPE_NOT_ALLOWED", "file type is not allowed")
	case errors.Is(err, ErrMimeMismatch):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "declared content type does not match file extension")
	case errors.Is(err, storage.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds the configured size limit")
	case errors.Is(err, preview.ErrUnsupported):
		response.Error(c, http.StatusBadRequest, "PREVIEW_UNSUPPORTED", "this file type has no inline preview, use download instead")
	case errors.Is(err, preview.ErrConverterUnavailable):
		response.Error(c, http.StatusServiceUnavailable, "PREVIEW_UNAVAILABLE", "document conversion service is not available")
	case errors.Is(err, preview.ErrConversionFailed):
		response.ErrorWithDetails(c, http.StatusBadGateway, "PREVIEW_CONVERSION_FAILED", "document conversion failed", err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "title and source_type are required")
		return
	}

	caller := callerFrom(c)
	r, err := h.service.Create(c.Request.Context(), caller, CreateInput{
		Title:       req.Title,
		Abstract:    req.Abstract,
		SourceType:  SourceType(req.SourceType),
		ExternalURL: req.ExternalURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, toView(r, caller))
}

func (h *Handler) List(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid list parameters")
		return
	}

	caller := callerFrom(c)
	rows, total, err := h.service.List(c.Request.Context(), caller, ListInput{
		Status:   Status(req.Status),
		Keyword:  req.Keyword,
		Page:     req.Page,
		PageSize: req.PageSize,
		Sort:     req.Sort,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]gin.H, 0, len(rows))
	for i := range rows {
		items = append(items, toView(&rows[i], caller))
	}
	response.Success(c, http.StatusOK, gin.H{
		"page":      req.Page,
		"page_size": req.PageSize,
		"total":     total,
		"items":     items,
	})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}

	caller := callerFrom(c)
	r, err := h.service.Get(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toView(r, caller))
}

func (h *Handler) Patch(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}

	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid patch payload")
		return
	}

	caller := callerFrom(c)
	r, err := h.service.Patch(c.Request.Context(), caller, id, PatchInput{
		Title:           req.Title,
		Abstract:        req.Abstract,
		ExternalURL:     req.ExternalURL,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toView(r, caller))
}

func (h *Handler) Upload(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "no file provided")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "cannot read uploaded file")
		return
	}
	defer f.Close()

	caller := callerFrom(c)
	r, err := h.service.UploadPrimary(c.Request.Context(), caller, id,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), f)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toView(r, caller))
}

func (h *Handler) AddAttachment(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "no file provided")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "cannot read uploaded file")
		return
	}
	defer f.Close()

	a, err := h.service.AddAttachment(c.Request.Context(), callerFrom(c), id,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), f)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, a)
}

func (h *Handler) ListAttachments(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}

	rows, err := h.service.ListAttachments(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

func (h *Handler) DeleteAttachment(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}
	attachmentID, err := strconv.ParseInt(c.Param("attachment_id"), 10, 64)
	if err != nil || attachmentID <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid attachment id")
		return
	}

	if err := h.service.DeleteAttachment(c.Request.Context(), callerFrom(c), id, attachmentID); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) Publish(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}

	caller := callerFrom(c)
	r, err := h.service.Publish(c.Request.Context(), caller, id, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toView(r, caller))
}

func (h *Handler) Archive(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}

	caller := callerFrom(c)
	r, err := h.service.Archive(c.Request.Context(), caller, id, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toView(r, caller))
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), callerFrom(c), id, c.ClientIP()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Download(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}

	grant, err := h.service.Download(c.Request.Context(), callerFrom(c), id,
		c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, grant)
}

func (h *Handler) UploadCover(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "no file provided")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "cannot read uploaded file")
		return
	}
	defer f.Close()

	caller := callerFrom(c)
	r, err := h.service.UploadCover(c.Request.Context(), caller, id, fileHeader.Filename, f)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toView(r, caller))
}

// Preview redirects natively renderable files to a signed inline URL and
// streams converted PDF artifacts directly.
func (h *Handler) Preview(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}

	res, err := h.service.Preview(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if res.URL != "" {
		c.Redirect(http.StatusFound, res.URL)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", res.FileName))
	c.Header("Content-Type", res.Mime)
	c.File(res.Path)
}
