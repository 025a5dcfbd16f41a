package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sosdesk/intake/app/models"
)

// Page selects a window of a listing. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

// IncidentFilter narrows incident listings. Zero values do not filter.
type IncidentFilter struct {
	Statuses    []models.IncidentStatus
	MinPriority *int
	MaxPriority *int
	From        *time.Time
	To          *time.Time
	RequesterID string
	District    string
	Plausible   *bool
	Channel     models.Channel
}

// TextAnalysisFilter narrows text analysis listings. Zero values do not filter.
type TextAnalysisFilter struct {
	Statuses    []models.AnalysisStatus
	MaxPriority *int
}

// ImageAnalysisFilter narrows image analysis listings. Zero values do not filter.
type ImageAnalysisFilter struct {
	IncidentID string
	// VeracityBelow keeps analyses scoring strictly under the value.
	VeracityBelow *float64
	AnomaliesOnly bool
}

// IncidentRepository defines the interface for incident persistence
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id string) (*models.Incident, error)
	GetForUpdate(ctx context.Context, id string) (*models.Incident, error)
	GetDetail(ctx context.Context, id string) (*models.Incident, error)
	Update(ctx context.Context, incident *models.Incident) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter IncidentFilter, page Page) ([]models.Incident, int64, error)
	ListForDispatch(ctx context.Context, page Page) ([]models.Incident, int64, error)
	ListPendingAnalysis(ctx context.Context, page Page) ([]models.Incident, int64, error)
	ListHighPriority(ctx context.Context, page Page) ([]models.Incident, int64, error)
	CountByRequester(ctx context.Context, requesterID string) (int64, error)
	CountActiveByRequester(ctx context.Context, requesterID string) (int64, error)
	CountByLocation(ctx context.Context, locationID string) (int64, error)
	CountByStatus(ctx context.Context) (map[models.IncidentStatus]int64, error)
}

// RequesterRepository defines the interface for requester persistence
type RequesterRepository interface {
	Create(ctx context.Context, requester *models.Requester) error
	GetByID(ctx context.Context, id string) (*models.Requester, error)
	GetByPhone(ctx context.Context, phone string) (*models.Requester, error)
	Update(ctx context.Context, requester *models.Requester) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page Page) ([]models.Requester, int64, error)
	ListByChannel(ctx context.Context, channel models.Channel, page Page) ([]models.Requester, int64, error)
}

// LocationRepository defines the interface for location persistence
type LocationRepository interface {
	Create(ctx context.Context, location *models.Location) error
	GetByID(ctx context.Context, id string) (*models.Location, error)
	Update(ctx context.Context, location *models.Location) error
	Delete(ctx context.Context, id string) error
	ListByDistrict(ctx context.Context, district string, page Page) ([]models.Location, int64, error)
}

// MultimediaRepository defines the interface for multimedia persistence
type MultimediaRepository interface {
	Create(ctx context.Context, item *models.Multimedia) error
	GetByID(ctx context.Context, id string) (*models.Multimedia, error)
	GetByIncident(ctx context.Context, incidentID string) ([]models.Multimedia, error)
	ListPendingImages(ctx context.Context, incidentID string) ([]models.Multimedia, error)
	Update(ctx context.Context, item *models.Multimedia) error
	Delete(ctx context.Context, id string) error
}

// TextAnalysisRepository defines the interface for text analysis persistence
type TextAnalysisRepository interface {
	Create(ctx context.Context, analysis *models.TextAnalysis) error
	GetByID(ctx context.Context, id string) (*models.TextAnalysis, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TextAnalysisFilter, page Page) ([]models.TextAnalysis, int64, error)
}

// ImageAnalysisRepository defines the interface for image analysis persistence
type ImageAnalysisRepository interface {
	Upsert(ctx context.Context, analysis *models.ImageAnalysis) error
	GetByID(ctx context.Context, id string) (*models.ImageAnalysis, error)
	GetByMultimedia(ctx context.Context, multimediaID string) (*models.ImageAnalysis, error)
	DeleteByMultimedia(ctx context.Context, multimediaID string) error
	List(ctx context.Context, filter ImageAnalysisFilter, page Page) ([]models.ImageAnalysis, int64, error)
}

// StateHistoryRepository defines the interface for the append-only status audit
type StateHistoryRepository interface {
	Create(ctx context.Context, entry *models.StateHistory) error
	ListByIncident(ctx context.Context, incidentID string) ([]models.StateHistory, error)
	ListByActor(ctx context.Context, actor string) ([]models.StateHistory, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.StateHistory, error)
	Latest(ctx context.Context, incidentID string) (*models.StateHistory, error)
	CountByIncident(ctx context.Context, incidentID string) (int64, error)
	DeleteByIncident(ctx context.Context, incidentID string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	db            *gorm.DB
	Incident      IncidentRepository
	Requester     RequesterRepository
	Location      LocationRepository
	Multimedia    MultimediaRepository
	TextAnalysis  TextAnalysisRepository
	ImageAnalysis ImageAnalysisRepository
	StateHistory  StateHistoryRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:            db,
		Incident:      NewIncidentRepository(db),
		Requester:     NewRequesterRepository(db),
		Location:      NewLocationRepository(db),
		Multimedia:    NewMultimediaRepository(db),
		TextAnalysis:  NewTextAnalysisRepository(db),
		ImageAnalysis: NewImageAnalysisRepository(db),
		StateHistory:  NewStateHistoryRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single database
// transaction. The transaction commits when fn returns nil.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// DB exposes the underlying handle, mainly for health checks.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}
