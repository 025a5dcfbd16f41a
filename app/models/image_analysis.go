package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ImageAnalysis stores the image gateway result for one multimedia item.
type ImageAnalysis struct {
	ID               string            `gorm:"type:char(36);primaryKey" json:"id"`
	MultimediaID     string            `gorm:"type:char(36);uniqueIndex;not null" json:"multimedia_id"`
	IsAccident       bool              `json:"is_accident"`
	VeracityScore    float64           `json:"veracity_score"`
	SceneType        string            `gorm:"type:varchar(100)" json:"scene_type"`
	VisualSeverity   int               `json:"visual_severity"`
	CriticalElements datatypes.JSONMap `json:"critical_elements,omitempty"`
	DetectedObjects  datatypes.JSONMap `json:"detected_objects,omitempty"`
	PersonCount      int               `json:"person_count"`
	VehicleCount     int               `json:"vehicle_count"`
	SceneCategories  datatypes.JSONMap `json:"scene_categories,omitempty"`
	SceneConfidence  float64           `json:"scene_confidence"`
	IsAnomaly        bool              `json:"is_anomaly"`
	AnomalyScore     float64           `json:"anomaly_score"`
	SuspicionReason  string            `gorm:"type:text" json:"suspicion_reason,omitempty"`
	Quality          ImageQuality      `gorm:"type:varchar(20)" json:"quality"`
	Resolution       string            `gorm:"type:varchar(30)" json:"resolution"`
	IsClear          bool              `json:"is_clear"`
	VisionModel      string            `gorm:"type:varchar(100)" json:"vision_model"`
	VeracityModel    string            `gorm:"type:varchar(100)" json:"veracity_model"`
	ProcessingMs     int               `json:"processing_ms"`
	AnalyzedAt       time.Time         `gorm:"not null" json:"analyzed_at"`
	Status           AnalysisStatus    `gorm:"type:varchar(20);not null" json:"status"`
	ErrorMessage     string            `gorm:"type:text" json:"error_message,omitempty"`
}

func (ImageAnalysis) TableName() string {
	return "image_analyses"
}

func NewImageAnalysis(multimediaID string) *ImageAnalysis {
	return &ImageAnalysis{
		ID:           uuid.New().String(),
		MultimediaID: multimediaID,
		Quality:      QualityFair,
		AnalyzedAt:   time.Now(),
		Status:       AnalysisCompleted,
	}
}
