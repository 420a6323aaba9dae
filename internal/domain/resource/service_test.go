package resource

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"resourcehub/internal/audit"
	"resourcehub/internal/domain/auth"
	"resourcehub/internal/storage"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, r *Resource) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Resource), args.Error(1)
}

func (m *MockRepository) GetByFileID(ctx context.Context, fileID string) (*Resource, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Resource), args.Error(1)
}

func (m *MockRepository) GetByCoverName(ctx context.Context, name string) (*Resource, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Resource), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, r *Resource) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) List(ctx context.Context, q ListQuery) ([]Resource, int64, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]Resource), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) IncrementDownloadCount(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) LogDownload(ctx context.Context, l *DownloadLog) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockRepository) AddAttachment(ctx context.Context, a *Attachment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockRepository) ListAttachments(ctx context.Context, resourceID int64) ([]Attachment, error) {
	args := m.Called(ctx, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Attachment), args.Error(1)
}

func (m *MockRepository) GetAttachment(ctx context.Context, resourceID, attachmentID int64) (*Attachment, error) {
	args := m.Called(ctx, resourceID, attachmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Attachment), args.Error(1)
}

func (m *MockRepository) GetAttachmentByFileID(ctx context.Context, fileID string) (*Attachment, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Attachment), args.Error(1)
}

func (m *MockRepository) DeleteAttachment(ctx context.Context, attachmentID int64) error {
	args := m.Called(ctx, attachmentID)
	return args.Error(0)
}

// fakeBackend keeps stored bytes in memory and records deletions.
type fakeBackend struct {
	files   map[string][]byte
	deleted []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{files: map[string][]byte{}}
}

func (b *fakeBackend) Kind() storage.Kind { return storage.KindLocal }

func (b *fakeBackend) Store(_ context.Context, fileID, filename string, r io.Reader, limit int64) (int64, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return 0, "", err
	}
	if int64(len(data)) > limit {
		return 0, "", storage.ErrFileTooLarge
	}
	b.files[storage.ObjectKey(fileID, filename)] = data
	sum := sha256.Sum256(data)
	return int64(len(data)), hex.EncodeToString(sum[:]), nil
}

func (b *fakeBackend) Open(_ context.Context, fileID, filename string) (io.ReadCloser, error) {
	data, ok := b.files[storage.ObjectKey(fileID, filename)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBackend) DownloadURL(_ context.Context, fileID, _ string, inline bool, boundUID string) (string, error) {
	u := "https://files.test/" + fileID
	if inline {
		u += "?inline=1"
	}
	if boundUID != "" {
		u += "&uid=" + boundUID
	}
	return u, nil
}

func (b *fakeBackend) MaterializeLocal(_ context.Context, _, _ string) (string, func(), error) {
	return "", nil, fmt.Errorf("not materializable in tests")
}

func (b *fakeBackend) Delete(_ context.Context, fileID, filename string) error {
	key := storage.ObjectKey(fileID, filename)
	delete(b.files, key)
	b.deleted = append(b.deleted, key)
	return nil
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, audit.Event) {}

var (
	adminCaller   = &Caller{ID: 1, Role: auth.RoleAdmin}
	ownerCaller   = &Caller{ID: 2, Role: auth.RoleTeacher}
	strangeCaller = &Caller{ID: 3, Role: auth.RoleTeacher}
)

func newTestService(repo Repository, backend storage.Backend) *Service {
	return NewService(repo, backend, nil, nil, noopRecorder{},
		1024, []string{"pdf", "docx", "mp4", "png", "zip"}, 60*time.Second, "")
}

func draftOwnedBy(ownerID int64) *Resource {
	return &Resource{ID: 10, Title: "Draft", SourceType: SourceUpload, Status: StatusDraft, OwnerID: ownerID}
}

func publishedOwnedBy(ownerID int64) *Resource {
	now := time.Now()
	return &Resource{ID: 11, Title: "Published", SourceType: SourceUpload,
		Status: StatusPublished, OwnerID: ownerID, PublishedAt: &now}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(new(MockRepository), newFakeBackend())

	_, err := svc.Create(context.Background(), ownerCaller, CreateInput{Title: "  ", SourceType: SourceUpload})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(context.Background(), ownerCaller, CreateInput{
		Title: "x", SourceType: SourceUpload, ExternalURL: "https://example.com"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(context.Background(), ownerCaller, CreateInput{
		Title: "x", SourceType: SourceLink, ExternalURL: "ftp://example.com/file"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(context.Background(), ownerCaller, CreateInput{Title: "x", SourceType: "weird"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateStartsAsOwnedDraft(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*resource.Resource")).Return(nil)
	svc := newTestService(repo, newFakeBackend())

	r, err := svc.Create(context.Background(), ownerCaller, CreateInput{
		Title: "  My upload  ", SourceType: SourceUpload})
	require.NoError(t, err)

	assert.Equal(t, "My upload", r.Title)
	assert.Equal(t, StatusDraft, r.Status)
	assert.Equal(t, ownerCaller.ID, r.OwnerID)
	repo.AssertExpectations(t)
}

func TestGetGating(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(10)).Return(draftOwnedBy(ownerCaller.ID), nil)
	svc := newTestService(repo, newFakeBackend())

	// Anonymous callers cannot even learn the draft exists.
	_, err := svc.Get(context.Background(), nil, 10)
	assert.ErrorIs(t, err, ErrNotFound)

	// Authenticated non-owners get an explicit denial.
	_, err = svc.Get(context.Background(), strangeCaller, 10)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// Owner and admin both see it.
	_, err = svc.Get(context.Background(), ownerCaller, 10)
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), adminCaller, 10)
	assert.NoError(t, err)
}

func TestListVisibilityByCaller(t *testing.T) {
	cases := []struct {
		name   string
		caller *Caller
		expect ListQuery
	}{
		{"anonymous", nil,
			ListQuery{Page: 1, PageSize: 20}},
		{"teacher sees own drafts", ownerCaller,
			ListQuery{VisibleOwnerID: ownerCaller.ID, Page: 1, PageSize: 20}},
		{"admin sees all", adminCaller,
			ListQuery{All: true, Page: 1, PageSize: 20}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(MockRepository)
			repo.On("List", mock.Anything, tc.expect).Return([]Resource{}, int64(0), nil)
			svc := newTestService(repo, newFakeBackend())

			_, _, err := svc.List(context.Background(), tc.caller, ListInput{})
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestListClampsPageSize(t *testing.T) {
	repo := new(MockRepository)
	repo.On("List", mock.Anything, ListQuery{Page: 1, PageSize: 100}).
		Return([]Resource{}, int64(0), nil)
	svc := newTestService(repo, newFakeBackend())

	_, _, err := svc.List(context.Background(), nil, ListInput{Page: -3, PageSize: 5000})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestPatchOwnerDraftOnly(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(11)).Return(publishedOwnedBy(ownerCaller.ID), nil)
	svc := newTestService(repo, newFakeBackend())

	title := "New title"
	_, err := svc.Patch(context.Background(), ownerCaller, 11, PatchInput{Title: &title})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestPatchManualDurationSticks(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(10)).Return(draftOwnedBy(ownerCaller.ID), nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*resource.Resource")).Return(nil)
	svc := newTestService(repo, newFakeBackend())

	seconds := 90
	r, err := svc.Patch(context.Background(), ownerCaller, 10, PatchInput{DurationSeconds: &seconds})
	require.NoError(t, err)

	assert.Equal(t, 90, *r.DurationSeconds)
	assert.True(t, r.DurationManual)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(10)).Return(draftOwnedBy(ownerCaller.ID), nil)
	svc := newTestService(repo, newFakeBackend())

	_, err := svc.UploadPrimary(context.Background(), ownerCaller, 10,
		"malware.exe", "application/octet-stream", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, ErrFileTypeNotAllowed)
}

func TestUploadRejectsMimeMismatch(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(10)).Return(draftOwnedBy(ownerCaller.ID), nil)
	svc := newTestService(repo, newFakeBackend())

	_, err := svc.UploadPrimary(context.Background(), ownerCaller, 10,
		"doc.pdf", "video/mp4", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, ErrMimeMismatch)
}

func TestUploadRejectsOversize(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(10)).Return(draftOwnedBy(ownerCaller.ID), nil)
	backend := newFakeBackend()
	svc := newTestService(repo, backend)

	_, err := svc.UploadPrimary(context.Background(), ownerCaller, 10,
		"big.pdf", "application/pdf", bytes.NewReader(make([]byte, 2048)))
	assert.ErrorIs(t, err, storage.ErrFileTooLarge)
	assert.Empty(t, backend.files)
}

func TestUploadReplacesPreviousFile(t *testing.T) {
	existing := draftOwnedBy(ownerCaller.ID)
	existing.File = FileDescriptor{FileID: "file_old", FileName: "old.pdf"}
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(10)).Return(existing, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*resource.Resource")).Return(nil)
	backend := newFakeBackend()
	svc := newTestService(repo, backend)

	content := []byte("%PDF-1.4 content")
	r, err := svc.UploadPrimary(context.Background(), ownerCaller, 10,
		"new.pdf", "application/pdf", bytes.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, "new.pdf", r.File.FileName)
	assert.Equal(t, int64(len(content)), r.File.FileSizeBytes)
	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), r.File.FileSHA256)
	assert.Equal(t, storage.KindLocal, r.StorageKind)
	assert.Contains(t, backend.deleted, storage.ObjectKey("file_old", "old.pdf"))
	repo.AssertExpectations(t)
}

func TestPublishStampsTime(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(10)).Return(draftOwnedBy(ownerCaller.ID), nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*resource.Resource")).Return(nil)
	svc := newTestService(repo, newFakeBackend())

	r, err := svc.Publish(context.Background(), ownerCaller, 10, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, StatusPublished, r.Status)
	require.NotNil(t, r.PublishedAt)
}

func TestPublishAlreadyPublishedDenied(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(11)).Return(publishedOwnedBy(ownerCaller.ID), nil)
	svc := newTestService(repo, newFakeBackend())

	_, err := svc.Publish(context.Background(), ownerCaller, 11, "10.0.0.1")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestArchiveClearsPublishTime(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(11)).Return(publishedOwnedBy(ownerCaller.ID), nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*resource.Resource")).Return(nil)
	svc := newTestService(repo, newFakeBackend())

	r, err := svc.Archive(context.Background(), ownerCaller, 11, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, r.Status)
	assert.Nil(t, r.PublishedAt)
}

func TestArchiveDraftDenied(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(10)).Return(draftOwnedBy(ownerCaller.ID), nil)
	svc := newTestService(repo, newFakeBackend())

	_, err := svc.Archive(context.Background(), ownerCaller, 10, "10.0.0.1")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDeleteRules(t *testing.T) {
	t.Run("owner deletes own draft", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", mock.Anything, int64(10)).Return(draftOwnedBy(ownerCaller.ID), nil)
		repo.On("Delete", mock.Anything, int64(10)).Return(nil)
		svc := newTestService(repo, newFakeBackend())

		assert.NoError(t, svc.Delete(context.Background(), ownerCaller, 10, ""))
		repo.AssertExpectations(t)
	})

	t.Run("owner cannot delete published", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", mock.Anything, int64(11)).Return(publishedOwnedBy(ownerCaller.ID), nil)
		svc := newTestService(repo, newFakeBackend())

		assert.ErrorIs(t, svc.Delete(context.Background(), ownerCaller, 11, ""), ErrPermissionDenied)
	})

	t.Run("admin deletes published", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", mock.Anything, int64(11)).Return(publishedOwnedBy(ownerCaller.ID), nil)
		repo.On("Delete", mock.Anything, int64(11)).Return(nil)
		svc := newTestService(repo, newFakeBackend())

		assert.NoError(t, svc.Delete(context.Background(), adminCaller, 11, ""))
	})
}

func TestDownloadLinkResourceReturnsExternalURL(t *testing.T) {
	link := &Resource{ID: 12, SourceType: SourceLink, Status: StatusPublished,
		OwnerID: ownerCaller.ID, ExternalURL: "https://example.com/paper"}
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(12)).Return(link, nil)
	svc := newTestService(repo, newFakeBackend())

	grant, err := svc.Download(context.Background(), ownerCaller, 12, "10.0.0.1", "ua")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/paper", grant.URL)
}

func TestDownloadAnonymousPolicy(t *testing.T) {
	// Published upload resources are downloadable anonymously; link
	// resources require authentication because the grant exposes the raw
	// external URL.
	upload := publishedOwnedBy(ownerCaller.ID)
	upload.File = FileDescriptor{FileID: "file_pub", FileName: "pub.pdf"}
	link := &Resource{ID: 12, SourceType: SourceLink, Status: StatusPublished,
		OwnerID: ownerCaller.ID, ExternalURL: "https://example.com"}

	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(11)).Return(upload, nil)
	repo.On("GetByID", mock.Anything, int64(12)).Return(link, nil)
	repo.On("LogDownload", mock.Anything, mock.AnythingOfType("*resource.DownloadLog")).Return(nil)
	repo.On("IncrementDownloadCount", mock.Anything, int64(11)).Return(nil)
	svc := newTestService(repo, newFakeBackend())

	grant, err := svc.Download(context.Background(), nil, 11, "10.0.0.1", "ua")
	require.NoError(t, err)
	assert.Contains(t, grant.URL, "file_pub")

	_, err = svc.Download(context.Background(), nil, 12, "10.0.0.1", "ua")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDownloadWithoutFile(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(10)).Return(draftOwnedBy(ownerCaller.ID), nil)
	svc := newTestService(repo, newFakeBackend())

	_, err := svc.Download(context.Background(), ownerCaller, 10, "10.0.0.1", "ua")
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestDownloadCountsAndLogs(t *testing.T) {
	upload := publishedOwnedBy(ownerCaller.ID)
	upload.File = FileDescriptor{FileID: "file_pub", FileName: "pub.pdf"}
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(11)).Return(upload, nil)
	repo.On("LogDownload", mock.Anything, mock.MatchedBy(func(l *DownloadLog) bool {
		return l.ResourceID == 11 && l.UserID == strangeCaller.ID && l.IP == "10.0.0.1"
	})).Return(nil)
	repo.On("IncrementDownloadCount", mock.Anything, int64(11)).Return(nil)
	svc := newTestService(repo, newFakeBackend())

	grant, err := svc.Download(context.Background(), strangeCaller, 11, "10.0.0.1", "ua")
	require.NoError(t, err)
	assert.Equal(t, 60, grant.ExpiresIn)
	repo.AssertExpectations(t)
}

func TestAddAttachmentValidatesLikePrimary(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(10)).Return(draftOwnedBy(ownerCaller.ID), nil)
	svc := newTestService(repo, newFakeBackend())

	_, err := svc.AddAttachment(context.Background(), ownerCaller, 10,
		"script.sh", "text/x-shellscript", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, ErrFileTypeNotAllowed)
}

func TestDeleteAttachmentRemovesStoredFile(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, int64(10)).Return(draftOwnedBy(ownerCaller.ID), nil)
	att := &Attachment{ID: 5, ResourceID: 10, FileID: "file_att", FileName: "notes.docx"}
	repo.On("GetAttachment", mock.Anything, int64(10), int64(5)).Return(att, nil)
	repo.On("DeleteAttachment", mock.Anything, int64(5)).Return(nil)
	backend := newFakeBackend()
	svc := newTestService(repo, backend)

	require.NoError(t, svc.DeleteAttachment(context.Background(), ownerCaller, 10, 5))
	assert.Contains(t, backend.deleted, storage.ObjectKey("file_att", "notes.docx"))
}
