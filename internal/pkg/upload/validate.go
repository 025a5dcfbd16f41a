package upload

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/sosdesk/intake/internal/pkg/apperror"
	"github.com/sosdesk/intake/internal/pkg/env"
)

// DefaultMaxBytes is the upload limit when MAX_UPLOAD_BYTES is unset.
const DefaultMaxBytes int64 = 10 * 1024 * 1024

// DefaultExtension is used when neither the filename nor the content
// yields a usable extension.
const DefaultExtension = "jpg"

// SniffLen is how many leading bytes Validate needs for content detection.
const SniffLen = 3072

var allowedMime = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/heic": "heic",
	"image/webp": "webp",
}

var allowedExt = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"heic": true,
	"webp": true,
}

// Rules bounds what an upload may contain.
type Rules struct {
	MaxBytes int64
}

// RulesFromEnv reads MAX_UPLOAD_BYTES.
func RulesFromEnv() Rules {
	return Rules{MaxBytes: env.GetEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxBytes)}
}

// Limit returns the effective size limit in bytes.
func (r Rules) Limit() int64 {
	if r.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return r.MaxBytes
}

// Result describes an accepted upload.
type Result struct {
	MIME      string
	Extension string
}

// IsAllowedMIME reports whether the media type is on the allow-list.
func IsAllowedMIME(mime string) bool {
	_, ok := allowedMime[normalizeMIME(mime)]
	return ok
}

// Validate checks an upload before anything is written: content must be
// present, no larger than MaxBytes, and both the declared type and the
// sniffed content must be on the allow-list. head holds the first bytes
// of the content (up to SniffLen).
func (r Rules) Validate(filename, declaredType string, size int64, head []byte) (*Result, error) {
	const op = "upload validate"

	max := r.Limit()
	if size <= 0 || len(head) == 0 {
		return nil, apperror.InvalidRequest(op, "file is empty")
	}
	if size > max {
		return nil, apperror.InvalidRequest(op, "file exceeds the maximum size of %d bytes", max)
	}

	if declared := normalizeMIME(declaredType); declared != "" && declared != "application/octet-stream" {
		if _, ok := allowedMime[declared]; !ok {
			return nil, apperror.InvalidRequest(op, "file type %s is not allowed", declared)
		}
	}

	detected := normalizeMIME(mimetype.Detect(head).String())
	ext, ok := allowedMime[detected]
	if !ok {
		return nil, apperror.InvalidRequest(op, "file content %s is not an allowed image type", detected)
	}

	if fromName := Extension(filename); fromName != "" && allowedExt[fromName] {
		ext = fromName
	}
	return &Result{MIME: detected, Extension: ext}, nil
}

// Extension returns the lowercase extension of name without the dot.
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// StoredName builds a collision-free file name keeping the extension.
func StoredName(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = DefaultExtension
	}
	return uuid.New().String() + "." + ext
}

func normalizeMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}
