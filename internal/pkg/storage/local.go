package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sosdesk/intake/internal/pkg/env"
)

// DefaultUploadDir is used when UPLOAD_DIR is unset.
const DefaultUploadDir = "uploads"

// LocalStore writes files below a directory served under URLPrefix.
type LocalStore struct {
	Dir       string
	URLPrefix string
}

// NewLocalStore creates the directory if needed.
func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if dir == "" {
		dir = DefaultUploadDir
	}
	if urlPrefix == "" {
		urlPrefix = "/" + filepath.ToSlash(filepath.Base(dir))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &LocalStore{Dir: dir, URLPrefix: urlPrefix}, nil
}

// NewLocalStoreFromEnv reads UPLOAD_DIR and UPLOAD_URL_PREFIX.
func NewLocalStoreFromEnv() (*LocalStore, error) {
	return NewLocalStore(env.GetEnv("UPLOAD_DIR", DefaultUploadDir), env.GetEnv("UPLOAD_URL_PREFIX", "/uploads"))
}

// Save writes content to Dir/name. A partially written file is removed.
func (s *LocalStore) Save(ctx context.Context, name string, content io.Reader) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid file name %q", name)
	}

	target := filepath.Join(s.Dir, name)
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", target, err)
	}

	written, copyErr := io.Copy(file, content)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(target)
		return nil, fmt.Errorf("write %s: %w", target, errors.Join(copyErr, closeErr))
	}

	log.Debugf("[Storage] Saved %s (%d bytes)", target, written)
	return &StoredFile{
		Path: target,
		URL:  path.Join(s.URLPrefix, name),
		Size: written,
	}, nil
}

// Delete removes the file. A missing file is not an error.
func (s *LocalStore) Delete(ctx context.Context, filePath string) error {
	if filePath == "" {
		return nil
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", filePath, err)
	}
	return nil
}
