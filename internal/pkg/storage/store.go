// Package storage persists uploaded multimedia files.
package storage

import (
	"context"
	"io"
)

// StoredFile locates a saved file.
type StoredFile struct {
	Path string // path handed to the image gateway
	URL  string // public URL served to clients
	Size int64
}

// FileStore saves and removes multimedia files.
type FileStore interface {
	Save(ctx context.Context, name string, content io.Reader) (*StoredFile, error)
	Delete(ctx context.Context, path string) error
}
