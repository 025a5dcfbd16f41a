package models

import (
	"fmt"
	"strings"
)

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

const (
	StatusReceived        IncidentStatus = "RECEIVED"
	StatusInTextAnalysis  IncidentStatus = "IN_TEXT_ANALYSIS"
	StatusInImageAnalysis IncidentStatus = "IN_IMAGE_ANALYSIS"
	StatusAnalyzed        IncidentStatus = "ANALYZED"
	StatusApproved        IncidentStatus = "APPROVED"
	StatusRejected        IncidentStatus = "REJECTED"
	StatusCanceled        IncidentStatus = "CANCELED"
)

var allStatuses = []IncidentStatus{
	StatusReceived,
	StatusInTextAnalysis,
	StatusInImageAnalysis,
	StatusAnalyzed,
	StatusApproved,
	StatusRejected,
	StatusCanceled,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []IncidentStatus {
	out := make([]IncidentStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// IsTerminal reports whether no further transition is accepted from s.
func (s IncidentStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCanceled
}

// IsAnalysis reports whether s is one of the automatic analysis states.
func (s IncidentStatus) IsAnalysis() bool {
	return s == StatusInTextAnalysis || s == StatusInImageAnalysis || s == StatusAnalyzed
}

func (s IncidentStatus) IsValid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseIncidentStatus accepts a status name in any case.
func ParseIncidentStatus(raw string) (IncidentStatus, error) {
	s := IncidentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("unknown incident status %q", raw)
	}
	return s, nil
}

// Channel is the chat platform an incident was reported through.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
)

// ParseChannel accepts "whatsapp"/"WHATSAPP" and "telegram"/"TELEGRAM".
func ParseChannel(raw string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(raw))) {
	case ChannelWhatsApp:
		return ChannelWhatsApp, nil
	case ChannelTelegram:
		return ChannelTelegram, nil
	}
	return "", fmt.Errorf("unknown channel %q", raw)
}

// FileKind classifies an uploaded multimedia item.
type FileKind string

const (
	FileKindImage FileKind = "image"
	FileKindAudio FileKind = "audio"
	FileKindVideo FileKind = "video"
)

// AnalysisStatus tracks a single ML analysis row.
type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisError     AnalysisStatus = "error"
)

// ImageQuality is the image gateway's quality verdict.
type ImageQuality string

const (
	QualityExcellent ImageQuality = "EXCELLENT"
	QualityGood      ImageQuality = "GOOD"
	QualityFair      ImageQuality = "FAIR"
	QualityPoor      ImageQuality = "POOR"
)

// ParseImageQuality maps the gateway labels (Spanish or English) to a
// quality value. Unknown or empty labels fall back to QualityFair.
func ParseImageQuality(raw string) ImageQuality {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "EXCELENTE", "EXCELLENT":
		return QualityExcellent
	case "BUENA", "GOOD":
		return QualityGood
	case "MALA", "POOR", "BAD":
		return QualityPoor
	default:
		return QualityFair
	}
}
