package resource

import "errors"

var (
	ErrNotFound           = errors.New("resource not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrValidation         = errors.New("validation failed")
	ErrFileTypeNotAllowed = errors.New("file type is not allowed")
	ErrMimeMismatch       = errors.New("declared content type does not match file extension")
	ErrNoFile             = errors.New("resource has no uploaded file")
	ErrAttachmentNotFound = errors.New("attachment not found")
)
