package storage

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2/log"
)

// Mirror uploads a copy of every saved file to a secondary location.
type Mirror interface {
	UploadFile(ctx context.Context, localPath string) (string, error)
	DeleteFile(ctx context.Context, localPath string) error
}

// MirroredStore saves to a primary store and copies each file to a mirror.
// Mirror failures are logged; the primary result stands.
type MirroredStore struct {
	primary FileStore
	mirror  Mirror
}

func NewMirroredStore(primary FileStore, mirror Mirror) *MirroredStore {
	return &MirroredStore{primary: primary, mirror: mirror}
}

func (m *MirroredStore) Save(ctx context.Context, name string, content io.Reader) (*StoredFile, error) {
	stored, err := m.primary.Save(ctx, name, content)
	if err != nil {
		return nil, err
	}
	if _, err := m.mirror.UploadFile(ctx, stored.Path); err != nil {
		log.Warnf("[Storage] Mirror upload failed for %s: %v", stored.Path, err)
	}
	return stored, nil
}

func (m *MirroredStore) Delete(ctx context.Context, filePath string) error {
	if filePath == "" {
		return nil
	}
	if err := m.mirror.DeleteFile(ctx, filePath); err != nil {
		log.Warnf("[Storage] Mirror delete failed for %s: %v", filePath, err)
	}
	return m.primary.Delete(ctx, filePath)
}
