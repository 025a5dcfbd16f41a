package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sosdesk/intake/app/models"
)

// locationRepository implements the LocationRepository interface
type locationRepository struct {
	db *gorm.DB
}

// NewLocationRepository creates a new location repository instance
func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepository{db: db}
}

func (r *locationRepository) Create(ctx context.Context, location *models.Location) error {
	return r.db.WithContext(ctx).Create(location).Error
}

func (r *locationRepository) GetByID(ctx context.Context, id string) (*models.Location, error) {
	var location models.Location
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&location).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *locationRepository) Update(ctx context.Context, location *models.Location) error {
	return r.db.WithContext(ctx).Save(location).Error
}

func (r *locationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Location{}).Error
}

func (r *locationRepository) ListByDistrict(ctx context.Context, district string, page Page) ([]models.Location, int64, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Location{}).Where("district = ?", district)
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	p := page.Normalize()
	var locations []models.Location
	err := base().Order("created_at DESC").Offset(p.Offset()).Limit(p.Size).Find(&locations).Error
	return locations, total, err
}
