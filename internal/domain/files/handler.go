// Package files serves stored bytes: the signed-URL endpoint for the local
// backend and the public cover-image endpoint.
package files

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resourcehub/internal/domain/resource"
	"resourcehub/internal/pkg/response"
	"resourcehub/internal/pkg/signer"
	"resourcehub/internal/storage"
)

// Store is the subset of the resource repository this package resolves file
// identities through. Soft-deleted resources never resolve.
type Store interface {
	GetByFileID(ctx context.Context, fileID string) (*resource.Resource, error)
	GetAttachmentByFileID(ctx context.Context, fileID string) (*resource.Attachment, error)
	GetByCoverName(ctx context.Context, name string) (*resource.Resource, error)
}

type Handler struct {
	store       Store
	signer      *signer.Service
	uploadDir   string
	coversDir   string
	backendKind storage.Kind
	now         func() time.Time
}

func NewHandler(store Store, sig *signer.Service, uploadDir, coversDir string, backendKind storage.Kind) *Handler {
	return &Handler{
		store:       store,
		signer:      sig,
		uploadDir:   uploadDir,
		coversDir:   coversDir,
		backendKind: backendKind,
		now:         time.Now,
	}
}

// Signed redeems an application-signed download reference. Only the local
// backend uses this path; S3 clients follow provider presigned URLs.
func (h *Handler) Signed(c *gin.Context) {
	if h.backendKind != storage.KindLocal {
		response.Error(c, http.StatusNotFound, "RESOURCE_NOT_FOUND", "signed serving is only available for local storage")
		return
	}

	fileID := c.Param("file_id")
	exp, err := strconv.ParseInt(c.Query("exp"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "SIGNATURE_INVALID", "malformed signed link")
		return
	}
	if h.now().Unix() > exp {
		response.Error(c, http.StatusUnauthorized, "LINK_EXPIRED", "signed link has expired")
		return
	}
	if !h.signer.Verify(fileID, exp, c.Query("sig"), c.Query("uid")) {
		response.Error(c, http.StatusUnauthorized, "SIGNATURE_INVALID", "signed link is invalid")
		return
	}

	filename, mimeType, err := h.resolve(c.Request.Context(), fileID)
	if err != nil {
		response.Error(c, http.StatusNotFound, "RESOURCE_NOT_FOUND", "file not found")
		return
	}

	path := filepath.Join(h.uploadDir, storage.ObjectKey(fileID, filename))
	if _, err := os.Stat(path); err != nil {
		response.Error(c, http.StatusNotFound, "RESOURCE_NOT_FOUND", "file not found on server")
		return
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	disposition := "attachment"
	if c.Query("inline") == "1" {
		disposition = "inline"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))
	c.Header("Content-Type", mimeType)
	c.File(path)
}

// resolve maps a file identity to its recorded name and MIME, trying the
// primary descriptor first, then attachments.
func (h *Handler) resolve(ctx context.Context, fileID string) (string, string, error) {
	if r, err := h.store.GetByFileID(ctx, fileID); err == nil && r.HasFile() {
		return r.File.FileName, r.File.FileMime, nil
	}
	a, err := h.store.GetAttachmentByFileID(ctx, fileID)
	if err != nil {
		return "", "", err
	}
	return a.FileName, a.Mime, nil
}

// Cover serves cover images from the dedicated covers sub-path. The name
// must exactly match a recorded cover and the resolved path must stay
// inside the covers directory.
func (h *Handler) Cover(c *gin.Context) {
	name := c.Param("name")
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid cover name")
		return
	}

	r, err := h.store.GetByCoverName(c.Request.Context(), name)
	if err != nil || r.Cover.CoverName != name {
		response.Error(c, http.StatusNotFound, "RESOURCE_NOT_FOUND", "cover not found")
		return
	}

	base, err := filepath.Abs(h.coversDir)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
		return
	}
	path, err := filepath.Abs(filepath.Join(base, name))
	if err != nil || !strings.HasPrefix(path, base+string(os.PathSeparator)) {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid cover path")
		return
	}
	if _, err := os.Stat(path); err != nil {
		response.Error(c, http.StatusNotFound, "RESOURCE_NOT_FOUND", "cover not found on server")
		return
	}

	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Header("Content-Type", mimeType)
	c.File(path)
}
