package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sosdesk/intake/app/models"
)

// textAnalysisRepository implements the TextAnalysisRepository interface
type textAnalysisRepository struct {
	db *gorm.DB
}

// NewTextAnalysisRepository creates a new text analysis repository instance
func NewTextAnalysisRepository(db *gorm.DB) TextAnalysisRepository {
	return &textAnalysisRepository{db: db}
}

func (r *textAnalysisRepository) Create(ctx context.Context, analysis *models.TextAnalysis) error {
	return r.db.WithContext(ctx).Create(analysis).Error
}

func (r *textAnalysisRepository) GetByID(ctx context.Context, id string) (*models.TextAnalysis, error) {
	var analysis models.TextAnalysis
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&analysis).Error; err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *textAnalysisRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.TextAnalysis{}).Error
}

func (r *textAnalysisRepository) filtered(ctx context.Context, f TextAnalysisFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.TextAnalysis{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.MaxPriority != nil {
		q = q.Where("priority <= ?", *f.MaxPriority)
	}
	return q
}

// List returns filtered analyses, most urgent first.
func (r *textAnalysisRepository) List(ctx context.Context, filter TextAnalysisFilter, page Page) ([]models.TextAnalysis, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	p := page.Normalize()
	var analyses []models.TextAnalysis
	err := r.filtered(ctx, filter).
		Order("priority ASC").
		Order("analyzed_at DESC").
		Offset(p.Offset()).
		Limit(p.Size).
		Find(&analyses).Error
	return analyses, total, err
}

// imageAnalysisRepository implements the ImageAnalysisRepository interface
type imageAnalysisRepository struct {
	db *gorm.DB
}

// NewImageAnalysisRepository creates a new image analysis repository instance
func NewImageAnalysisRepository(db *gorm.DB) ImageAnalysisRepository {
	return &imageAnalysisRepository{db: db}
}

// Upsert stores the analysis, replacing any previous result for the same
// multimedia item so re-analysis keeps the one-to-one relation.
func (r *imageAnalysisRepository) Upsert(ctx context.Context, analysis *models.ImageAnalysis) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "multimedia_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"is_accident", "veracity_score", "scene_type", "visual_severity",
			"critical_elements", "detected_objects", "person_count", "vehicle_count",
			"scene_categories", "scene_confidence", "is_anomaly", "anomaly_score",
			"suspicion_reason", "quality", "resolution", "is_clear", "vision_model",
			"veracity_model", "processing_ms", "analyzed_at", "status", "error_message",
		}),
	}).Create(analysis).Error
}

func (r *imageAnalysisRepository) GetByID(ctx context.Context, id string) (*models.ImageAnalysis, error) {
	var analysis models.ImageAnalysis
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&analysis).Error; err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *imageAnalysisRepository) GetByMultimedia(ctx context.Context, multimediaID string) (*models.ImageAnalysis, error) {
	var analysis models.ImageAnalysis
	if err := r.db.WithContext(ctx).Where("multimedia_id = ?", multimediaID).First(&analysis).Error; err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *imageAnalysisRepository) DeleteByMultimedia(ctx context.Context, multimediaID string) error {
	return r.db.WithContext(ctx).Where("multimedia_id = ?", multimediaID).Delete(&models.ImageAnalysis{}).Error
}

func (r *imageAnalysisRepository) filtered(ctx context.Context, f ImageAnalysisFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.ImageAnalysis{})
	if f.IncidentID != "" {
		q = q.Joins("JOIN multimedia ON multimedia.id = image_analyses.multimedia_id").
			Where("multimedia.incident_id = ?", f.IncidentID)
	}
	if f.VeracityBelow != nil {
		q = q.Where("image_analyses.veracity_score < ?", *f.VeracityBelow)
	}
	if f.AnomaliesOnly {
		q = q.Where("image_analyses.is_anomaly = ?", true)
	}
	return q
}

// List returns filtered analyses, least credible first.
func (r *imageAnalysisRepository) List(ctx context.Context, filter ImageAnalysisFilter, page Page) ([]models.ImageAnalysis, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	p := page.Normalize()
	var analyses []models.ImageAnalysis
	err := r.filtered(ctx, filter).
		Select("image_analyses.*").
		Order("image_analyses.veracity_score ASC").
		Order("image_analyses.analyzed_at DESC").
		Offset(p.Offset()).
		Limit(p.Size).
		Find(&analyses).Error
	return analyses, total, err
}
