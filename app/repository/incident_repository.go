package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sosdesk/intake/app/models"
)

// incidentRepository implements the IncidentRepository interface
type incidentRepository struct {
	db *gorm.DB
}

// NewIncidentRepository creates a new incident repository instance
func NewIncidentRepository(db *gorm.DB) IncidentRepository {
	return &incidentRepository{db: db}
}

func (r *incidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(incident).Error
}

func (r *incidentRepository) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	var incident models.Incident
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// GetForUpdate loads the incident holding a row lock until the surrounding
// transaction ends. Outside a transaction the lock is released immediately.
func (r *incidentRepository) GetForUpdate(ctx context.Context, id string) (*models.Incident, error) {
	var incident models.Incident
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// GetDetail loads the incident with requester, location, analyses,
// multimedia and history (newest first).
func (r *incidentRepository) GetDetail(ctx context.Context, id string) (*models.Incident, error) {
	var incident models.Incident
	err := r.db.WithContext(ctx).
		Preload("Requester").
		Preload("Location").
		Preload("TextAnalysis").
		Preload("Multimedia", func(db *gorm.DB) *gorm.DB {
			return db.Order("uploaded_at ASC")
		}).
		Preload("Multimedia.ImageAnalysis").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("changed_at DESC")
		}).
		Where("id = ?", id).
		First(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *incidentRepository) Update(ctx context.Context, incident *models.Incident) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(incident).Error
}

func (r *incidentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Incident{}).Error
}

// filtered builds a fresh query for f on each call so Count and Find do not
// share statement state.
func (r *incidentRepository) filtered(ctx context.Context, f IncidentFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Incident{})

	if len(f.Statuses) > 0 {
		q = q.Where("incidents.status IN ?", f.Statuses)
	}
	if f.MinPriority != nil {
		q = q.Where("incidents.final_priority >= ?", *f.MinPriority)
	}
	if f.MaxPriority != nil {
		q = q.Where("incidents.final_priority <= ?", *f.MaxPriority)
	}
	if f.From != nil {
		q = q.Where("incidents.reported_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("incidents.reported_at <= ?", *f.To)
	}
	if f.RequesterID != "" {
		q = q.Where("incidents.requester_id = ?", f.RequesterID)
	}
	if f.Plausible != nil {
		q = q.Where("incidents.plausible = ?", *f.Plausible)
	}
	if f.District != "" {
		q = q.Joins("JOIN locations ON locations.id = incidents.location_id").
			Where("locations.district = ?", f.District)
	}
	if f.Channel != "" {
		q = q.Joins("JOIN requesters ON requesters.id = incidents.requester_id").
			Where("requesters.channel = ?", f.Channel)
	}
	return q
}

func (r *incidentRepository) page(ctx context.Context, f IncidentFilter, page Page, order string) ([]models.Incident, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	p := page.Normalize()
	var incidents []models.Incident
	err := r.filtered(ctx, f).
		Select("incidents.*").
		Order(order).
		Offset(p.Offset()).
		Limit(p.Size).
		Find(&incidents).Error
	return incidents, total, err
}

// List returns filtered incidents, newest first
func (r *incidentRepository) List(ctx context.Context, filter IncidentFilter, page Page) ([]models.Incident, int64, error) {
	return r.page(ctx, filter, page, "incidents.reported_at DESC")
}

// ListForDispatch returns approved incidents not known to be implausible,
// most urgent first.
func (r *incidentRepository) ListForDispatch(ctx context.Context, page Page) ([]models.Incident, int64, error) {
	var total int64
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Incident{}).
			Where("status = ?", models.StatusApproved).
			Where("(plausible IS NULL OR plausible = ?)", true)
	}
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	p := page.Normalize()
	var incidents []models.Incident
	err := base().
		Order("CASE WHEN final_priority IS NULL THEN 1 ELSE 0 END").
		Order("final_priority ASC").
		Order("reported_at ASC").
		Offset(p.Offset()).
		Limit(p.Size).
		Find(&incidents).Error
	return incidents, total, err
}

// ListPendingAnalysis returns open incidents without a text analysis yet.
func (r *incidentRepository) ListPendingAnalysis(ctx context.Context, page Page) ([]models.Incident, int64, error) {
	var total int64
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Incident{}).
			Where("text_analysis_id IS NULL").
			Where("status NOT IN ?", []models.IncidentStatus{models.StatusApproved, models.StatusRejected, models.StatusCanceled})
	}
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	p := page.Normalize()
	var incidents []models.Incident
	err := base().Order("reported_at ASC").Offset(p.Offset()).Limit(p.Size).Find(&incidents).Error
	return incidents, total, err
}

// ListHighPriority returns incidents with a final priority of 1 or 2.
func (r *incidentRepository) ListHighPriority(ctx context.Context, page Page) ([]models.Incident, int64, error) {
	one, two := 1, 2
	return r.page(ctx, IncidentFilter{MinPriority: &one, MaxPriority: &two}, page,
		"incidents.final_priority ASC, incidents.reported_at DESC")
}

func (r *incidentRepository) CountByRequester(ctx context.Context, requesterID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Incident{}).Where("requester_id = ?", requesterID).Count(&count).Error
	return count, err
}

// CountActiveByRequester counts the requester's incidents that are not
// rejected or canceled.
func (r *incidentRepository) CountActiveByRequester(ctx context.Context, requesterID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Incident{}).
		Where("requester_id = ?", requesterID).
		Where("status NOT IN ?", []models.IncidentStatus{models.StatusRejected, models.StatusCanceled}).
		Count(&count).Error
	return count, err
}

func (r *incidentRepository) CountByLocation(ctx context.Context, locationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Incident{}).Where("location_id = ?", locationID).Count(&count).Error
	return count, err
}

func (r *incidentRepository) CountByStatus(ctx context.Context) (map[models.IncidentStatus]int64, error) {
	var rows []struct {
		Status models.IncidentStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Incident{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[models.IncidentStatus]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Total
	}
	return result, nil
}
