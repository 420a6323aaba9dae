package resource

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ListQuery is resolved by the service from the caller's identity; the
// repository only translates it to SQL. gorm's soft-delete scope keeps
// deleted rows out of every query here.
type ListQuery struct {
	// Status filters by lifecycle state (admin listing only).
	Status Status
	// VisibleOwnerID widens a published-only listing with this owner's
	// drafts (teacher listing).
	VisibleOwnerID int64
	// All disables status filtering entirely (admin without filter).
	All bool
	// Keyword matches title or abstract, case-insensitive.
	Keyword string

	Page     int
	PageSize int
	// Sort: created_desc (default), created_asc, downloads_desc.
	Sort string
}

type Repository interface {
	Create(ctx context.Context, r *Resource) error
	GetByID(ctx context.Context, id int64) (*Resource, error)
	GetByFileID(ctx context.Context, fileID string) (*Resource, error)
	GetByCoverName(ctx context.Context, name string) (*Resource, error)
	Update(ctx context.Context, r *Resource) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q ListQuery) ([]Resource, int64, error)
	IncrementDownloadCount(ctx context.Context, id int64) error
	LogDownload(ctx context.Context, l *DownloadLog) error

	AddAttachment(ctx context.Context, a *Attachment) error
	ListAttachments(ctx context.Context, resourceID int64) ([]Attachment, error)
	GetAttachment(ctx context.Context, resourceID, attachmentID int64) (*Attachment, error)
	GetAttachmentByFileID(ctx context.Context, fileID string) (*Attachment, error)
	DeleteAttachment(ctx context.Context, attachmentID int64) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, res *Resource) error {
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Resource, error) {
	var res Resource
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &res, err
}

func (r *repository) GetByFileID(ctx context.Context, fileID string) (*Resource, error) {
	var res Resource
	err := r.db.WithContext(ctx).Where("file_id = ?", fileID).First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &res, err
}

func (r *repository) GetByCoverName(ctx context.Context, name string) (*Resource, error) {
	var res Resource
	err := r.db.WithContext(ctx).Where("cover_name = ?", name).First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &res, err
}

func (r *repository) Update(ctx context.Context, res *Resource) error {
	return r.db.WithContext(ctx).Save(res).Error
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&Resource{}, id).Error
}

func (r *repository) List(ctx context.Context, q ListQuery) ([]Resource, int64, error) {
	tx := r.db.WithContext(ctx).Model(&Resource{})

	switch {
	case q.All:
		if q.Status != "" {
			tx = tx.Where("status = ?", q.Status)
		}
	case q.VisibleOwnerID != 0:
		tx = tx.Where("status = ? OR owner_id = ?", StatusPublished, q.VisibleOwnerID)
	default:
		tx = tx.Where("status = ?", StatusPublished)
	}

	if q.Keyword != "" {
		like := "%" + q.Keyword + "%"
		tx = tx.Where("title LIKE ? OR abstract LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch q.Sort {
	case "created_asc":
		tx = tx.Order("created_at ASC")
	case "downloads_desc":
		tx = tx.Order("download_count DESC")
	default:
		tx = tx.Order("created_at DESC")
	}

	var rows []Resource
	err := tx.Offset((q.Page - 1) * q.PageSize).Limit(q.PageSize).Find(&rows).Error
	return rows, total, err
}

func (r *repository) IncrementDownloadCount(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&Resource{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
}

func (r *repository) LogDownload(ctx context.Context, l *DownloadLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *repository) AddAttachment(ctx context.Context, a *Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *repository) ListAttachments(ctx context.Context, resourceID int64) ([]Attachment, error) {
	var rows []Attachment
	err := r.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) GetAttachment(ctx context.Context, resourceID, attachmentID int64) (*Attachment, error) {
	var a Attachment
	err := r.db.WithContext(ctx).
		Where("id = ? AND resource_id = ?", attachmentID, resourceID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttachmentNotFound
	}
	return &a, err
}

// GetAttachmentByFileID resolves only attachments whose parent resource is
// still live. Attachments carry no deleted_at of their own, so the parent's
// soft-delete mark is checked through the join.
func (r *repository) GetAttachmentByFileID(ctx context.Context, fileID string) (*Attachment, error) {
	var a Attachment
	err := r.db.WithContext(ctx).
		Select("resource_attachments.*").
		Joins("JOIN resources ON resources.id = resource_attachments.resource_id AND resources.deleted_at IS NULL").
		Where("resource_attachments.file_id = ?", fileID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttachmentNotFound
	}
	return &a, err
}

func (r *repository) DeleteAttachment(ctx context.Context, attachmentID int64) error {
	return r.db.WithContext(ctx).Delete(&Attachment{}, attachmentID).Error
}
