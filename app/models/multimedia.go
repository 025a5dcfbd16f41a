package models

import (
	"time"

	"github.com/google/uuid"
)

// Multimedia is a file attached to an incident.
type Multimedia struct {
	ID                string         `gorm:"type:char(36);primaryKey" json:"id"`
	IncidentID        string         `gorm:"type:char(36);index;not null" json:"incident_id"`
	URL               string         `gorm:"type:varchar(500);not null" json:"url"`
	StoragePath       string         `gorm:"type:varchar(500);not null" json:"-"`
	ThumbnailURL      string         `gorm:"type:varchar(500)" json:"thumbnail_url,omitempty"`
	ThumbnailPath     string         `gorm:"type:varchar(500)" json:"-"`
	OriginalName      string         `gorm:"type:varchar(255)" json:"original_name"`
	Kind              FileKind       `gorm:"type:varchar(10);not null" json:"kind"`
	Format            string         `gorm:"type:varchar(20)" json:"format"`
	SizeBytes         int64          `json:"size_bytes"`
	Description       string         `gorm:"type:text" json:"description,omitempty"`
	IsPrimary         bool           `json:"is_primary"`
	RequiresAnalysis  bool           `json:"requires_analysis"`
	AnalysisCompleted bool           `json:"analysis_completed"`
	UploadedAt        time.Time      `gorm:"not null" json:"uploaded_at"`
	ImageAnalysis     *ImageAnalysis `gorm:"foreignKey:MultimediaID" json:"image_analysis,omitempty"`
}

func (Multimedia) TableName() string {
	return "multimedia"
}

// NewMultimedia builds a multimedia row with the creation defaults applied:
// not primary, analysis required for images and not yet completed.
func NewMultimedia(incidentID string, kind FileKind) *Multimedia {
	if kind == "" {
		kind = FileKindImage
	}
	return &Multimedia{
		ID:               uuid.New().String(),
		IncidentID:       incidentID,
		Kind:             kind,
		RequiresAnalysis: kind == FileKindImage,
		UploadedAt:       time.Now(),
	}
}

// NeedsImageAnalysis reports whether the item is an image still waiting for analysis.
func (m *Multimedia) NeedsImageAnalysis() bool {
	return m.Kind == FileKindImage && m.RequiresAnalysis && !m.AnalysisCompleted
}
