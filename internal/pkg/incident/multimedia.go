package incident

import (
	"bytes"
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/internal/pkg/apperror"
	"github.com/sosdesk/intake/internal/pkg/upload"
)

// UploadInput describes one uploaded file.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
	Description string
	IsPrimary   bool
}

// UploadMultimedia validates and stores an image for the incident, then
// dispatches its analysis after the row commits. Invalid files are
// refused before anything is written.
func (s *Service) UploadMultimedia(ctx context.Context, incidentID string, in UploadInput) (*models.Multimedia, error) {
	const op = "upload multimedia"
	if s.files == nil {
		return nil, apperror.New(apperror.KindInternal, op, "no file store configured")
	}
	if in.Content == nil {
		return nil, apperror.InvalidRequest(op, "file is required")
	}

	inc, err := s.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if inc.Status.IsTerminal() {
		return nil, apperror.InvalidRequest(op, "incident %s is %s and accepts no new files", inc.ID, inc.Status)
	}

	// The declared size only short-circuits; at most one byte past the
	// limit is read from the content.
	max := s.cfg.Upload.Limit()
	if in.Size > max {
		return nil, apperror.InvalidRequest(op, "file exceeds the maximum size of %d bytes", max)
	}
	data, err := io.ReadAll(io.LimitReader(in.Content, max+1))
	if err != nil {
		return nil, apperror.InvalidRequest(op, "file could not be read: %v", err)
	}
	if int64(len(data)) > max {
		return nil, apperror.InvalidRequest(op, "file exceeds the maximum size of %d bytes", max)
	}
	head := data
	if len(head) > upload.SniffLen {
		head = head[:upload.SniffLen]
	}
	checked, err := s.cfg.Upload.Validate(in.Filename, in.ContentType, int64(len(data)), head)
	if err != nil {
		return nil, err
	}

	stored, err := s.files.Save(ctx, upload.StoredName(checked.Extension), bytes.NewReader(data))
	if err != nil {
		return nil, apperror.StorageFailure(op, err)
	}

	item := models.NewMultimedia(inc.ID, models.FileKindImage)
	item.URL = stored.URL
	item.StoragePath = stored.Path
	item.OriginalName = filepath.Base(in.Filename)
	item.Format = checked.Extension
	item.SizeBytes = stored.Size
	item.Description = in.Description
	item.IsPrimary = in.IsPrimary
	s.attachThumbnail(ctx, item)

	err = s.inTx(ctx, func(uow *unitOfWork) error {
		if err := uow.repos.Multimedia.Create(ctx, item); err != nil {
			return apperror.StorageFailure(op, err)
		}
		uow.raise(Event{Type: EventMultimediaCreated, IncidentID: inc.ID, MultimediaID: item.ID})
		return nil
	})
	if err != nil {
		s.discardFiles(ctx, item.StoragePath, item.ThumbnailPath)
		return nil, err
	}
	log.Infof("[Multimedia] Stored %s for incident %s (%d bytes)", item.ID, inc.ID, item.SizeBytes)
	return item, nil
}

// attachThumbnail is best effort; formats the decoder lacks keep no preview.
func (s *Service) attachThumbnail(ctx context.Context, item *models.Multimedia) {
	if s.thumbs == nil {
		return
	}
	thumbPath, err := s.thumbs.Generate(ctx, item.StoragePath)
	if err != nil {
		log.Warnf("[Multimedia] No thumbnail for %s: %v", item.ID, err)
		return
	}
	item.ThumbnailPath = thumbPath
	item.ThumbnailURL = siblingURL(item.URL, filepath.Base(thumbPath))
}

// siblingURL swaps the last path element of u for name.
func siblingURL(u, name string) string {
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[:i+1] + name
	}
	return path.Join(path.Dir(u), name)
}

func (s *Service) discardFiles(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := s.files.Delete(ctx, p); err != nil {
			log.Warnf("[Multimedia] Failed to remove %s: %v", p, err)
		}
	}
}

// GetMultimedia returns an item with its image analysis.
func (s *Service) GetMultimedia(ctx context.Context, id string) (*models.Multimedia, error) {
	item, err := s.repos.Multimedia.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("get multimedia", "multimedia", id, err)
	}
	return item, nil
}

func (s *Service) ListMultimedia(ctx context.Context, incidentID string) ([]models.Multimedia, error) {
	if _, err := s.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	items, err := s.repos.Multimedia.GetByIncident(ctx, incidentID)
	if err != nil {
		return nil, apperror.StorageFailure("list multimedia", err)
	}
	return items, nil
}

// DeleteMultimedia removes an item, its analysis and, after commit, its
// stored files. Items of approved incidents are kept.
func (s *Service) DeleteMultimedia(ctx context.Context, id string) error {
	const op = "delete multimedia"
	item, err := s.GetMultimedia(ctx, id)
	if err != nil {
		return err
	}
	err = s.withIncidentLock(ctx, item.IncidentID, func(uow *unitOfWork, inc *models.Incident) error {
		if inc.Status == models.StatusApproved {
			return apperror.InvalidRequest(op, "files of approved incidents cannot be deleted")
		}
		if err := uow.repos.ImageAnalysis.DeleteByMultimedia(ctx, item.ID); err != nil {
			return apperror.StorageFailure(op, err)
		}
		if err := uow.repos.Multimedia.Delete(ctx, item.ID); err != nil {
			return apperror.StorageFailure(op, err)
		}
		uow.removeAfterCommit(item.StoragePath, item.ThumbnailPath)
		return nil
	})
	if err != nil {
		return err
	}
	log.Infof("[Multimedia] Deleted %s of incident %s", id, item.IncidentID)
	return nil
}
