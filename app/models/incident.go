package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultInitialPriority is used when a report carries no priority hint.
const DefaultInitialPriority = 3

// Incident is a reported emergency moving from intake through ML analysis
// to dispatch approval. FinalPriority is derived from TextPriority and
// ImagePriority only and is never written by clients.
type Incident struct {
	ID                  string         `gorm:"type:char(36);primaryKey" json:"id"`
	RequesterID         string         `gorm:"type:char(36);index;not null" json:"requester_id"`
	Requester           *Requester     `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	LocationID          string         `gorm:"type:char(36);index;not null" json:"location_id"`
	Location            *Location      `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	TextAnalysisID      *string        `gorm:"type:char(36);index" json:"text_analysis_id,omitempty"`
	TextAnalysis        *TextAnalysis  `gorm:"foreignKey:TextAnalysisID" json:"text_analysis,omitempty"`
	Description         string         `gorm:"type:text;not null" json:"description"`
	ReportedType        string         `gorm:"type:varchar(100)" json:"reported_type,omitempty"`
	ClassifiedType      string         `gorm:"type:varchar(100)" json:"classified_type,omitempty"`
	InitialPriority     int            `gorm:"not null" json:"initial_priority"`
	TextPriority        *int           `json:"text_priority,omitempty"`
	ImagePriority       *int           `json:"image_priority,omitempty"`
	FinalPriority       *int           `gorm:"index" json:"final_priority,omitempty"`
	VeracityScore       *float64       `json:"veracity_score,omitempty"`
	Plausible           *bool          `json:"plausible,omitempty"`
	Status              IncidentStatus `gorm:"type:varchar(30);index;not null" json:"status"`
	RejectionReason     string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	ReportedAt          time.Time      `gorm:"index;not null" json:"reported_at"`
	AnalysisCompletedAt *time.Time     `json:"analysis_completed_at,omitempty"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	Observations        string         `gorm:"type:text" json:"observations,omitempty"`
	Multimedia          []Multimedia   `gorm:"foreignKey:IncidentID" json:"multimedia,omitempty"`
	History             []StateHistory `gorm:"foreignKey:IncidentID" json:"history,omitempty"`
}

func (Incident) TableName() string {
	return "incidents"
}

// NewIncident builds a RECEIVED incident with a fresh id. A non-positive
// initial priority becomes DefaultInitialPriority.
func NewIncident(requesterID, locationID, description, reportedType string, initialPriority int) *Incident {
	if initialPriority <= 0 {
		initialPriority = DefaultInitialPriority
	}
	now := time.Now()
	return &Incident{
		ID:              uuid.New().String(),
		RequesterID:     requesterID,
		LocationID:      locationID,
		Description:     description,
		ReportedType:    reportedType,
		InitialPriority: initialPriority,
		Status:          StatusReceived,
		ReportedAt:      now,
		UpdatedAt:       now,
	}
}

// PendingAnalysis reports whether no final priority has been computed yet.
func (i *Incident) PendingAnalysis() bool {
	return i.FinalPriority == nil
}

// KnownImplausible reports whether a veracity score exists and the incident
// was judged not plausible.
func (i *Incident) KnownImplausible() bool {
	return i.VeracityScore != nil && (i.Plausible == nil || !*i.Plausible)
}
