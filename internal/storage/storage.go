package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Kind discriminates which backend a stored file belongs to. A file written
// under one backend is served by that backend for its whole lifetime.
type Kind string

const (
	KindLocal Kind = "local"
	KindS3    Kind = "s3"
)

var (
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	ErrNotFound     = errors.New("stored file not found")
)

// Backend is the uniform contract over local disk and S3-compatible object
// storage. Store is the only operation that creates durable bytes; the rest
// never mutate stored content.
type Backend interface {
	Kind() Kind

	// Store streams r under the key derived from (fileID, filename),
	// enforcing limit bytes mid-stream. On ErrFileTooLarge any partial
	// write is removed. Returns the byte count and SHA-256 hex of the
	// exact bytes stored.
	Store(ctx context.Context, fileID, filename string, r io.Reader, limit int64) (int64, string, error)

	// Open returns a reader over the stored bytes.
	Open(ctx context.Context, fileID, filename string) (io.ReadCloser, error)

	// DownloadURL returns a time-limited reference to the file: a
	// provider presigned URL for S3, an application-signed URL for local.
	// boundUID, when non-empty, ties a local reference to one user.
	DownloadURL(ctx context.Context, fileID, filename string, inline bool, boundUID string) (string, error)

	// MaterializeLocal makes the file available on the local filesystem
	// for backend-blind consumers (preview conversion, media probing).
	// The cleanup func must be called when the caller is done; for the
	// local backend it is a no-op and the returned path is the stored
	// file itself.
	MaterializeLocal(ctx context.Context, fileID, filename string) (string, func(), error)

	// Delete removes the stored bytes. Missing files are not an error.
	Delete(ctx context.Context, fileID, filename string) error
}

// NewFileID returns an opaque identity that namespaces a storage key, so two
// uploads with identical caller-supplied names never collide.
func NewFileID() string {
	return "file_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// SanitizeFilename strips path separators and parent references from a
// caller-supplied name before it is embedded in a storage key.
func SanitizeFilename(name string) string {
	cleaned := strings.NewReplacer("\\", "_", "/", "_", "..", "_").Replace(name)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "file"
	}
	return cleaned
}

// ObjectKey builds the storage key for a file.
func ObjectKey(fileID, filename string) string {
	return fileID + "_" + SanitizeFilename(filename)
}
