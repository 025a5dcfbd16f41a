package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sosdesk/intake/app/models"
)

// requesterRepository implements the RequesterRepository interface
type requesterRepository struct {
	db *gorm.DB
}

// NewRequesterRepository creates a new requester repository instance
func NewRequesterRepository(db *gorm.DB) RequesterRepository {
	return &requesterRepository{db: db}
}

// Create inserts the requester. A duplicate phone surfaces as
// gorm.ErrDuplicatedKey when the connection translates errors.
func (r *requesterRepository) Create(ctx context.Context, requester *models.Requester) error {
	return r.db.WithContext(ctx).Create(requester).Error
}

func (r *requesterRepository) GetByID(ctx context.Context, id string) (*models.Requester, error) {
	var requester models.Requester
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&requester).Error; err != nil {
		return nil, err
	}
	return &requester, nil
}

func (r *requesterRepository) GetByPhone(ctx context.Context, phone string) (*models.Requester, error) {
	var requester models.Requester
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&requester).Error; err != nil {
		return nil, err
	}
	return &requester, nil
}

func (r *requesterRepository) Update(ctx context.Context, requester *models.Requester) error {
	return r.db.WithContext(ctx).Save(requester).Error
}

func (r *requesterRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Requester{}).Error
}

func (r *requesterRepository) List(ctx context.Context, page Page) ([]models.Requester, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Requester{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	p := page.Normalize()
	var requesters []models.Requester
	err := r.db.WithContext(ctx).Order("registered_at DESC").Offset(p.Offset()).Limit(p.Size).Find(&requesters).Error
	return requesters, total, err
}

func (r *requesterRepository) ListByChannel(ctx context.Context, channel models.Channel, page Page) ([]models.Requester, int64, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Requester{}).Where("channel = ?", channel)
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	p := page.Normalize()
	var requesters []models.Requester
	err := base().Order("registered_at DESC").Offset(p.Offset()).Limit(p.Size).Find(&requesters).Error
	return requesters, total, err
}
