// Package preview converts uploaded documents into an inline-renderable form
// on demand, caching converted artifacts by file identity.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"resourcehub/internal/storage"
)

// ErrUnsupported marks file types that are deliberately excluded from inline
// preview (archives, unknown formats). The caller should point the client at
// the direct download path; this is policy, not a failure.
var ErrUnsupported = errors.New("inline preview not supported for this file type")

// Category groups file types by preview policy.
type Category int

const (
	// CatNative renders inline as-is (images, PDF, common audio/video).
	CatNative Category = iota
	// CatOffice needs conversion to PDF first.
	CatOffice
	// CatUnsupported is served via download only.
	CatUnsupported
)

var nativeExts = map[string]bool{
	"pdf": true, "png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true,
	"mp4": true, "webm": true, "mov": true, "mp3": true, "wav": true, "m4a": true,
}

var officeExts = map[string]bool{
	"doc": true, "docx": true, "ppt": true, "pptx": true, "xls": true, "xlsx": true,
}

// Categorize decides the preview policy for a filename by its extension.
func Categorize(filename string) Category {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch {
	case nativeExts[ext]:
		return CatNative
	case officeExts[ext]:
		return CatOffice
	default:
		return CatUnsupported
	}
}

// Result describes how a file can be rendered inline.
type Result struct {
	// Native means the stored bytes render as-is; serve them via a signed
	// reference or direct stream.
	Native bool
	// Path is the cached PDF artifact for converted documents.
	Path string
}

// Service is the on-demand conversion pipeline. Cache entries live under
// cacheDir keyed "<fileID>.pdf" and are never proactively evicted. Two
// concurrent misses for the same file may both convert; both write the same
// target path, so the race is wasteful but harmless.
type Service struct {
	backend   storage.Backend
	converter DocumentConverter
	cacheDir  string
}

func NewService(backend storage.Backend, converter DocumentConverter, cacheDir string) (*Service, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create preview cache dir: %w", err)
	}
	return &Service{backend: backend, converter: converter, cacheDir: cacheDir}, nil
}

// EnsureRenderable returns how the given file should be rendered inline,
// converting and caching office documents on first request.
func (s *Service) EnsureRenderable(ctx context.Context, fileID, filename string) (Result, error) {
	switch Categorize(filename) {
	case CatNative:
		return Result{Native: true}, nil
	case CatOffice:
		path, err := s.ensureConverted(ctx, fileID, filename)
		if err != nil {
			return Result{}, err
		}
		return Result{Path: path}, nil
	default:
		return Result{}, ErrUnsupported
	}
}

// CachedArtifact returns the cache path for a file identity if it exists.
func (s *Service) CachedArtifact(fileID string) (string, bool) {
	path := s.artifactPath(fileID)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func (s *Service) artifactPath(fileID string) string {
	return filepath.Join(s.cacheDir, fileID+".pdf")
}

func (s *Service) ensureConverted(ctx context.Context, fileID, filename string) (string, error) {
	cached := s.artifactPath(fileID)
	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}

	src, cleanup, err := s.backend.MaterializeLocal(ctx, fileID, filename)
	if err != nil {
		return "", err
	}
	defer cleanup()

	outDir, err := os.MkdirTemp("", "convert-*")
	if err != nil {
		return "", fmt.Errorf("create conversion scratch dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	produced, err := s.converter.ToPDF(ctx, src, outDir)
	if err != nil {
		return "", err
	}

	if err := moveFile(produced, cached); err != nil {
		return "", fmt.Errorf("store preview artifact: %w", err)
	}
	return cached, nil
}

// moveFile renames, falling back to copy+remove when src and dst sit on
// different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
