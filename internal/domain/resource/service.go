package resource

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"resourcehub/internal/audit"
	"resourcehub/internal/preview"
	"resourcehub/internal/storage"
)

// Service implements the resource lifecycle: creation, gated edits, file
// uploads, publish/archive transitions, signed downloads and previews.
// Every transition is reported to the audit recorder; recording never fails
// the mutation.
type Service struct {
	repo     Repository
	backend  storage.Backend
	previews *preview.Service
	prober   preview.MediaProber
	audit    audit.Recorder

	maxUploadBytes int64
	allowedExts    map[string]bool
	urlExpires     time.Duration
	coversDir      string
}

func NewService(
	repo Repository,
	backend storage.Backend,
	previews *preview.Service,
	prober preview.MediaProber,
	auditRec audit.Recorder,
	maxUploadBytes int64,
	allowedExts []string,
	urlExpires time.Duration,
	coversDir string,
) *Service {
	allowed := make(map[string]bool, len(allowedExts))
	for _, ext := range allowedExts {
		allowed[strings.ToLower(ext)] = true
	}
	return &Service{
		repo:           repo,
		backend:        backend,
		previews:       previews,
		prober:         prober,
		audit:          auditRec,
		maxUploadBytes: maxUploadBytes,
		allowedExts:    allowed,
		urlExpires:     urlExpires,
		coversDir:      coversDir,
	}
}

type CreateInput struct {
	Title       string
	Abstract    string
	SourceType  SourceType
	ExternalURL string
}

func (s *Service) Create(ctx context.Context, caller *Caller, in CreateInput) (*Resource, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	switch in.SourceType {
	case SourceUpload:
		if in.ExternalURL != "" {
			return nil, fmt.Errorf("%w: external_url must be empty for upload resources", ErrValidation)
		}
	case SourceLink:
		if err := validateExternalURL(in.ExternalURL); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: invalid source_type %q", ErrValidation, in.SourceType)
	}

	r := &Resource{
		Title:       strings.TrimSpace(in.Title),
		Abstract:    in.Abstract,
		SourceType:  in.SourceType,
		ExternalURL: in.ExternalURL,
		Status:      StatusDraft,
		OwnerID:     caller.ID,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Get applies view gating: hidden resources look like 404 to anonymous
// callers and like 403 to authenticated non-owners.
func (s *Service) Get(ctx context.Context, caller *Caller, id int64) (*Resource, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(caller, r) {
		if caller == nil {
			return nil, ErrNotFound
		}
		return nil, ErrPermissionDenied
	}
	return r, nil
}

type ListInput struct {
	Status   Status
	Keyword  string
	Page     int
	PageSize int
	Sort     string
}

func (s *Service) List(ctx context.Context, caller *Caller, in ListInput) ([]Resource, int64, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.PageSize < 1 {
		in.PageSize = 20
	}
	if in.PageSize > 100 {
		in.PageSize = 100
	}

	q := ListQuery{
		Keyword:  in.Keyword,
		Page:     in.Page,
		PageSize: in.PageSize,
		Sort:     in.Sort,
	}
	switch {
	case isAdmin(caller):
		q.All = true
		q.Status = in.Status
	case caller != nil:
		q.VisibleOwnerID = caller.ID
	}
	return s.repo.List(ctx, q)
}

type PatchInput struct {
	Title       *string
	Abstract    *string
	ExternalURL *string
	// DurationSeconds is a manual override; once set it is never
	// replaced by an automatic probe.
	DurationSeconds *int
}

func (s *Service) Patch(ctx context.Context, caller *Caller, id int64, in PatchInput) (*Resource, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanEdit(caller, r) {
		return nil, ErrPermissionDenied
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrValidation)
		}
		r.Title = strings.TrimSpace(*in.Title)
	}
	if in.Abstract != nil {
		r.Abstract = *in.Abstract
	}
	if in.ExternalURL != nil {
		if r.SourceType != SourceLink {
			return nil, fmt.Errorf("%w: external_url only applies to link resources", ErrValidation)
		}
		if err := validateExternalURL(*in.ExternalURL); err != nil {
			return nil, err
		}
		r.ExternalURL = *in.ExternalURL
	}
	if in.DurationSeconds != nil {
		if *in.DurationSeconds < 0 {
			return nil, fmt.Errorf("%w: duration_seconds must be >= 0", ErrValidation)
		}
		r.DurationSeconds = in.DurationSeconds
		r.DurationManual = true
	}

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{ActorID: caller.ID, Action: "resource.update", ResourceID: r.ID})
	return r, nil
}

// UploadPrimary streams the primary file into the storage backend, replacing
// any previous file. Extension and declared MIME are validated up front; the
// backend enforces the byte limit mid-stream and removes partial data.
func (s *Service) UploadPrimary(ctx context.Context, caller *Caller, id int64, filename, declaredMime string, r io.Reader) (*Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanEdit(caller, res) {
		return nil, ErrPermissionDenied
	}
	if res.SourceType != SourceUpload {
		return nil, fmt.Errorf("%w: link resources do not carry files", ErrValidation)
	}

	filename = storage.SanitizeFilename(filename)
	ext := ExtOf(filename)
	if !s.allowedExts[ext] {
		return nil, ErrFileTypeNotAllowed
	}
	if !MimeConsistent(ext, declaredMime) {
		return nil, ErrMimeMismatch
	}

	fileID := storage.NewFileID()
	size, hash, err := s.backend.Store(ctx, fileID, filename, r, s.maxUploadBytes)
	if err != nil {
		return nil, err
	}

	// replace: remove the previous file after the new one is durable
	if res.HasFile() {
		if err := s.backend.Delete(ctx, res.File.FileID, res.File.FileName); err != nil {
			log.Printf("stale_file_delete_failed file_id=%s error=%q", res.File.FileID, err)
		}
	}

	res.File = FileDescriptor{
		FileID:        fileID,
		FileName:      filename,
		FileSizeBytes: size,
		FileMime:      declaredMime,
		FileSHA256:    hash,
	}
	res.StorageKind = s.backend.Kind()

	if IsMediaExt(ext) {
		s.probeDuration(ctx, res)
	}

	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{ActorID: caller.ID, Action: "resource.upload", ResourceID: res.ID})
	return res, nil
}

// probeDuration is best-effort: any failure leaves the duration unset, and a
// manual value is never overwritten.
func (s *Service) probeDuration(ctx context.Context, res *Resource) {
	if res.DurationManual || s.prober == nil {
		return
	}

	path, cleanup, err := s.backend.MaterializeLocal(ctx, res.File.FileID, res.File.FileName)
	if err != nil {
		log.Printf("duration_probe_skipped file_id=%s error=%q", res.File.FileID, err)
		return
	}
	defer cleanup()

	seconds, err := s.prober.Duration(ctx, path)
	if err != nil {
		log.Printf("duration_probe_failed file_id=%s error=%q", res.File.FileID, err)
		return
	}
	d := int(seconds + 0.5)
	res.DurationSeconds = &d
}

func (s *Service) AddAttachment(ctx context.Context, caller *Caller, id int64, filename, declaredMime string, r io.Reader) (*Attachment, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanEdit(caller, res) {
		return nil, ErrPermissionDenied
	}

	filename = storage.SanitizeFilename(filename)
	ext := ExtOf(filename)
	if !s.allowedExts[ext] {
		return nil, ErrFileTypeNotAllowed
	}
	if !MimeConsistent(ext, declaredMime) {
		return nil, ErrMimeMismatch
	}

	fileID := storage.NewFileID()
	size, hash, err := s.backend.Store(ctx, fileID, filename, r, s.maxUploadBytes)
	if err != nil {
		return nil, err
	}

	a := &Attachment{
		ResourceID: res.ID,
		FileID:     fileID,
		FileName:   filename,
		SizeBytes:  size,
		Mime:       declaredMime,
		SHA256:     hash,
	}
	if err := s.repo.AddAttachment(ctx, a); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{ActorID: caller.ID, Action: "attachment.add", ResourceID: res.ID})
	return a, nil
}

func (s *Service) ListAttachments(ctx context.Context, caller *Caller, id int64) ([]Attachment, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(caller, res) {
		return nil, ErrPermissionDenied
	}
	return s.repo.ListAttachments(ctx, res.ID)
}

func (s *Service) DeleteAttachment(ctx context.Context, caller *Caller, id, attachmentID int64) error {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanManage(caller, res) {
		return ErrPermissionDenied
	}

	a, err := s.repo.GetAttachment(ctx, res.ID, attachmentID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAttachment(ctx, a.ID); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, a.FileID, a.FileName); err != nil {
		log.Printf("attachment_file_delete_failed file_id=%s error=%q", a.FileID, err)
	}
	s.audit.Record(ctx, audit.Event{ActorID: caller.ID, Action: "attachment.delete", ResourceID: res.ID})
	return nil
}

// Publish moves draft -> published and stamps the publish time.
func (s *Service) Publish(ctx context.Context, caller *Caller, id int64, ip string) (*Resource, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanPublish(caller, r) {
		return nil, ErrPermissionDenied
	}

	now := time.Now()
	r.Status = StatusPublished
	r.PublishedAt = &now
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{ActorID: caller.ID, Action: "resource.publish", ResourceID: r.ID, IP: ip})
	return r, nil
}

// Archive returns a published resource to draft and clears the publish
// time; there is no separate archived state.
func (s *Service) Archive(ctx context.Context, caller *Caller, id int64, ip string) (*Resource, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanArchive(caller, r) {
		return nil, ErrPermissionDenied
	}

	r.Status = StatusDraft
	r.PublishedAt = nil
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{ActorID: caller.ID, Action: "resource.archive", ResourceID: r.ID, IP: ip})
	return r, nil
}

// Delete soft-deletes; the row becomes invisible to every query and signed
// references to its files stop resolving. No undelete exists here.
func (s *Service) Delete(ctx context.Context, caller *Caller, id int64, ip string) error {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanDelete(caller, r) {
		return ErrPermissionDenied
	}

	if err := s.repo.Delete(ctx, r.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Event{ActorID: caller.ID, Action: "resource.delete", ResourceID: r.ID, IP: ip})
	return nil
}

type DownloadGrant struct {
	URL       string `json:"download_url"`
	ExpiresIn int    `json:"expires_in"`
}

// Download authorizes the caller and mints a time-limited reference: the
// external URL for link resources, a presigned or application-signed URL
// otherwise. Each grant is logged and counted.
func (s *Service) Download(ctx context.Context, caller *Caller, id int64, ip, userAgent string) (*DownloadGrant, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanDownload(caller, r) {
		return nil, ErrPermissionDenied
	}

	expiresIn := int(s.urlExpires.Seconds())
	if r.SourceType == SourceLink {
		return &DownloadGrant{URL: r.ExternalURL, ExpiresIn: expiresIn}, nil
	}
	if !r.HasFile() {
		return nil, ErrNoFile
	}

	u, err := s.backend.DownloadURL(ctx, r.File.FileID, r.File.FileName, false, "")
	if err != nil {
		return nil, err
	}

	var userID int64
	if caller != nil {
		userID = caller.ID
	}
	if err := s.repo.LogDownload(ctx, &DownloadLog{ResourceID: r.ID, UserID: userID, IP: ip, UserAgent: userAgent}); err != nil {
		log.Printf("download_log_failed resource_id=%d error=%q", r.ID, err)
	}
	if err := s.repo.IncrementDownloadCount(ctx, r.ID); err != nil {
		log.Printf("download_count_failed resource_id=%d error=%q", r.ID, err)
	}
	s.audit.Record(ctx, audit.Event{ActorID: userID, Action: "resource.download", ResourceID: r.ID, IP: ip})

	return &DownloadGrant{URL: u, ExpiresIn: expiresIn}, nil
}

// PreviewResult tells the handler how to render the file inline: redirect
// the client to URL, or stream the local artifact at Path.
type PreviewResult struct {
	URL      string
	Path     string
	FileName string
	Mime     string
}

// Preview returns an inline-renderable form of the primary file, converting
// office documents through the cached pipeline on first request.
func (s *Service) Preview(ctx context.Context, caller *Caller, id int64) (*PreviewResult, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanDownload(caller, r) {
		return nil, ErrPermissionDenied
	}
	if r.SourceType == SourceLink || !r.HasFile() {
		return nil, ErrNoFile
	}

	res, err := s.previews.EnsureRenderable(ctx, r.File.FileID, r.File.FileName)
	if err != nil {
		return nil, err
	}

	if res.Native {
		u, err := s.backend.DownloadURL(ctx, r.File.FileID, r.File.FileName, true, "")
		if err != nil {
			return nil, err
		}
		return &PreviewResult{URL: u, FileName: r.File.FileName, Mime: r.File.FileMime}, nil
	}
	return &PreviewResult{
		Path:     res.Path,
		FileName: strings.TrimSuffix(r.File.FileName, "."+ExtOf(r.File.FileName)) + ".pdf",
		Mime:     "application/pdf",
	}, nil
}

// UploadCover stores a cover image under the dedicated covers sub-path.
// Covers are always local files regardless of the primary storage backend.
func (s *Service) UploadCover(ctx context.Context, caller *Caller, id int64, filename string, r io.Reader) (*Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanEdit(caller, res) {
		return nil, ErrPermissionDenied
	}

	ext := ExtOf(storage.SanitizeFilename(filename))
	if !IsImageExt(ext) {
		return nil, fmt.Errorf("%w: cover must be an image", ErrValidation)
	}

	if err := os.MkdirAll(s.coversDir, 0o755); err != nil {
		return nil, fmt.Errorf("create covers dir: %w", err)
	}
	name := "cover_" + strings.ReplaceAll(uuid.New().String(), "-", "") + "." + ext
	path := filepath.Join(s.coversDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cover file: %w", err)
	}
	written, err := io.Copy(dst, io.LimitReader(r, s.maxUploadBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write cover file: %w", err)
	}
	if written > s.maxUploadBytes {
		os.Remove(path)
		return nil, storage.ErrFileTooLarge
	}

	if res.Cover.CoverName != "" {
		os.Remove(filepath.Join(s.coversDir, res.Cover.CoverName))
	}
	res.Cover = CoverRef{CoverBackend: storage.KindLocal, CoverName: name}
	if err := s.repo.Update(ctx, res); err != nil {
		os.Remove(path)
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{ActorID: caller.ID, Action: "resource.cover", ResourceID: res.ID})
	return res, nil
}

func validateExternalURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: external_url must be a valid http(s) URL", ErrValidation)
	}
	return nil
}
