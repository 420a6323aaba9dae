package resource

import (
	"path/filepath"
	"strings"
)

// extMIMEs maps each allowed extension to the content types a client may
// declare for it. Initialized once; the upload path only reads it.
var extMIMEs = map[string][]string{
	"pdf":  {"application/pdf"},
	"doc":  {"application/msword"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	"ppt":  {"application/vnd.ms-powerpoint"},
	"pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation"},
	"xls":  {"application/vnd.ms-excel"},
	"xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	"mp4":  {"video/mp4"},
	"webm": {"video/webm"},
	"mov":  {"video/quicktime"},
	"mp3":  {"audio/mpeg", "audio/mp3"},
	"wav":  {"audio/wav", "audio/x-wav"},
	"m4a":  {"audio/mp4", "audio/x-m4a"},
	"png":  {"image/png"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"gif":  {"image/gif"},
	"webp": {"image/webp"},
	"zip":  {"application/zip", "application/x-zip-compressed"},
}

var mediaExts = map[string]bool{
	"mp3": true, "mp4": true, "wav": true, "webm": true, "mov": true, "m4a": true,
}

var imageExts = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true,
}

// ExtOf returns the lower-cased extension without the dot.
func ExtOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// MimeConsistent reports whether the client-declared content type is
// plausible for the extension. Unset or generic declarations pass; a
// concrete mismatch is rejected.
func MimeConsistent(ext, declared string) bool {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared == "" || declared == "application/octet-stream" {
		return true
	}
	for _, m := range extMIMEs[ext] {
		if declared == m {
			return true
		}
	}
	return false
}

func IsMediaExt(ext string) bool { return mediaExts[ext] }

func IsImageExt(ext string) bool { return imageExts[ext] }
