package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sosdesk/intake/app/models"
)

// multimediaRepository implements the MultimediaRepository interface
type multimediaRepository struct {
	db *gorm.DB
}

// NewMultimediaRepository creates a new multimedia repository instance
func NewMultimediaRepository(db *gorm.DB) MultimediaRepository {
	return &multimediaRepository{db: db}
}

func (r *multimediaRepository) Create(ctx context.Context, item *models.Multimedia) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

func (r *multimediaRepository) GetByID(ctx context.Context, id string) (*models.Multimedia, error) {
	var item models.Multimedia
	err := r.db.WithContext(ctx).Preload("ImageAnalysis").Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *multimediaRepository) GetByIncident(ctx context.Context, incidentID string) ([]models.Multimedia, error) {
	var items []models.Multimedia
	err := r.db.WithContext(ctx).
		Preload("ImageAnalysis").
		Where("incident_id = ?", incidentID).
		Order("uploaded_at ASC").
		Find(&items).Error
	return items, err
}

// ListPendingImages returns image items of the incident still awaiting analysis.
func (r *multimediaRepository) ListPendingImages(ctx context.Context, incidentID string) ([]models.Multimedia, error) {
	var items []models.Multimedia
	err := r.db.WithContext(ctx).
		Where("incident_id = ? AND kind = ? AND requires_analysis = ? AND analysis_completed = ?",
			incidentID, models.FileKindImage, true, false).
		Order("uploaded_at ASC").
		Find(&items).Error
	return items, err
}

func (r *multimediaRepository) Update(ctx context.Context, item *models.Multimedia) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error
}

func (r *multimediaRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Multimedia{}).Error
}
