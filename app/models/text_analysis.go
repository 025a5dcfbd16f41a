package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DefaultTextModelVersion = "bert-medical-v1.0"
	DefaultTextAlgorithm    = "transformer"
)

// TextAnalysis stores the text gateway result for one incident.
type TextAnalysis struct {
	ID                    string                      `gorm:"type:char(36);primaryKey" json:"id"`
	AnalyzedText          string                      `gorm:"type:text" json:"analyzed_text"`
	Priority              int                         `json:"priority"`
	Severity              int                         `json:"severity"`
	PredictedType         string                      `gorm:"type:varchar(100)" json:"predicted_type"`
	Categories            datatypes.JSONMap           `json:"categories,omitempty"`
	Keywords              datatypes.JSONSlice[string] `json:"keywords,omitempty"`
	MedicalEntities       datatypes.JSONMap           `json:"medical_entities,omitempty"`
	CategoryProbabilities datatypes.JSONMap           `json:"category_probabilities,omitempty"`
	Confidence            float64                     `json:"confidence"`
	ModelVersion          string                      `gorm:"type:varchar(50)" json:"model_version"`
	Algorithm             string                      `gorm:"type:varchar(50)" json:"algorithm"`
	ProcessingMs          int                         `json:"processing_ms"`
	AnalyzedAt            time.Time                   `gorm:"not null" json:"analyzed_at"`
	Status                AnalysisStatus              `gorm:"type:varchar(20);not null" json:"status"`
	ErrorMessage          string                      `gorm:"type:text" json:"error_message,omitempty"`
}

func (TextAnalysis) TableName() string {
	return "text_analyses"
}

// NewTextAnalysis builds a completed analysis row with the default model
// metadata; callers overwrite the fields the gateway returned.
func NewTextAnalysis(text string) *TextAnalysis {
	return &TextAnalysis{
		ID:           uuid.New().String(),
		AnalyzedText: text,
		ModelVersion: DefaultTextModelVersion,
		Algorithm:    DefaultTextAlgorithm,
		AnalyzedAt:   time.Now(),
		Status:       AnalysisCompleted,
	}
}
