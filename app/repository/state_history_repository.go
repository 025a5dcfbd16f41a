package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sosdesk/intake/app/models"
)

// stateHistoryRepository implements the StateHistoryRepository interface
type stateHistoryRepository struct {
	db *gorm.DB
}

// NewStateHistoryRepository creates a new state history repository instance
func NewStateHistoryRepository(db *gorm.DB) StateHistoryRepository {
	return &stateHistoryRepository{db: db}
}

func (r *stateHistoryRepository) Create(ctx context.Context, entry *models.StateHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *stateHistoryRepository) ListByIncident(ctx context.Context, incidentID string) ([]models.StateHistory, error) {
	var entries []models.StateHistory
	err := r.db.WithContext(ctx).Where("incident_id = ?", incidentID).Order("changed_at DESC").Find(&entries).Error
	return entries, err
}

func (r *stateHistoryRepository) ListByActor(ctx context.Context, actor string) ([]models.StateHistory, error) {
	var entries []models.StateHistory
	err := r.db.WithContext(ctx).Where("actor = ?", actor).Order("changed_at DESC").Find(&entries).Error
	return entries, err
}

func (r *stateHistoryRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.StateHistory, error) {
	var entries []models.StateHistory
	err := r.db.WithContext(ctx).
		Where("changed_at BETWEEN ? AND ?", from, to).
		Order("changed_at DESC").
		Find(&entries).Error
	return entries, err
}

// Latest returns the most recent change for the incident.
func (r *stateHistoryRepository) Latest(ctx context.Context, incidentID string) (*models.StateHistory, error) {
	var entry models.StateHistory
	err := r.db.WithContext(ctx).
		Where("incident_id = ?", incidentID).
		Order("changed_at DESC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *stateHistoryRepository) CountByIncident(ctx context.Context, incidentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.StateHistory{}).Where("incident_id = ?", incidentID).Count(&count).Error
	return count, err
}

func (r *stateHistoryRepository) DeleteByIncident(ctx context.Context, incidentID string) error {
	return r.db.WithContext(ctx).Where("incident_id = ?", incidentID).Delete(&models.StateHistory{}).Error
}
