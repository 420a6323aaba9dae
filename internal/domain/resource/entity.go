package resource

import (
	"time"

	"gorm.io/gorm"

	"resourcehub/internal/domain/auth"
	"resourcehub/internal/storage"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

type SourceType string

const (
	SourceUpload SourceType = "upload"
	SourceLink   SourceType = "url"
)

// Caller is the identity a capability check runs against. A nil *Caller
// means anonymous.
type Caller struct {
	ID   int64
	Role auth.UserRole
}

// FileDescriptor holds the stored-file metadata of an upload resource.
// Empty FileID means no file has been uploaded yet.
type FileDescriptor struct {
	FileID        string `gorm:"column:file_id;index" json:"id,omitempty"`
	FileName      string `gorm:"column:file_name" json:"name,omitempty"`
	FileSizeBytes int64  `gorm:"column:file_size_bytes" json:"size_bytes,omitempty"`
	FileMime      string `gorm:"column:file_mime" json:"mime,omitempty"`
	FileSHA256    string `gorm:"column:file_sha256" json:"sha256,omitempty"`
}

// CoverRef is a tagged reference to a cover image: backend discriminant plus
// key, instead of a prefix-sentinel string.
type CoverRef struct {
	CoverBackend storage.Kind `gorm:"column:cover_backend" json:"-"`
	CoverName    string       `gorm:"column:cover_name" json:"cover_name,omitempty"`
}

// Resource is the protected entity. Exactly one of the file descriptor and
// the external URL is populated, per SourceType. Soft-deleted rows are
// filtered by gorm's DeletedAt scope in every query, so a deleted resource
// is invisible to capability checks and storage operations alike.
type Resource struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title         string     `gorm:"column:title" json:"title"`
	Abstract      string     `gorm:"column:abstract" json:"abstract"`
	SourceType    SourceType `gorm:"column:source_type" json:"source_type"`
	ExternalURL   string     `gorm:"column:external_url" json:"external_url,omitempty"`
	Status        Status     `gorm:"column:status" json:"status"`
	OwnerID       int64      `gorm:"column:owner_id;index" json:"owner_id"`
	DownloadCount int64      `gorm:"column:download_count" json:"download_count"`

	File  FileDescriptor `gorm:"embedded" json:"-"`
	Cover CoverRef       `gorm:"embedded" json:"-"`

	// Backend the primary file was written under; its retrieval path
	// serves the file for the rest of its lifetime.
	StorageKind storage.Kind `gorm:"column:storage_kind" json:"-"`

	// DurationSeconds is probed for media uploads; Manual marks a value
	// supplied by the caller, which a later probe never overwrites.
	DurationSeconds *int `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	DurationManual  bool `gorm:"column:duration_manual" json:"-"`

	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at" json:"updated_at"`
	PublishedAt *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Resource) TableName() string { return "resources" }

func (r *Resource) HasFile() bool { return r.File.FileID != "" }

// Attachment is a secondary file bound to a resource, with its own storage
// key independent of the primary descriptor.
type Attachment struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ResourceID int64     `gorm:"column:resource_id;index" json:"resource_id"`
	FileID     string    `gorm:"column:file_id;index" json:"file_id"`
	FileName   string    `gorm:"column:file_name" json:"file_name"`
	SizeBytes  int64     `gorm:"column:size_bytes" json:"size_bytes"`
	Mime       string    `gorm:"column:mime" json:"mime"`
	SHA256     string    `gorm:"column:sha256" json:"sha256"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Attachment) TableName() string { return "resource_attachments" }

type DownloadLog struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ResourceID int64     `gorm:"column:resource_id;index" json:"resource_id"`
	UserID     int64     `gorm:"column:user_id" json:"user_id"`
	IP         string    `gorm:"column:ip" json:"ip"`
	UserAgent  string    `gorm:"column:user_agent" json:"user_agent"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (DownloadLog) TableName() string { return "download_logs" }
