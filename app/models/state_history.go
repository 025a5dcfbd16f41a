package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SystemActor is recorded when a transition is not attributed to a user.
const SystemActor = "SYSTEM"

// StateHistory is an append-only audit row written for every status change.
type StateHistory struct {
	ID             string            `gorm:"type:char(36);primaryKey" json:"id"`
	IncidentID     string            `gorm:"type:char(36);index;not null" json:"incident_id"`
	PreviousStatus IncidentStatus    `gorm:"type:varchar(30)" json:"previous_status"`
	NewStatus      IncidentStatus    `gorm:"type:varchar(30);index;not null" json:"new_status"`
	Actor          string            `gorm:"type:varchar(100);index;not null" json:"actor"`
	Reason         string            `gorm:"type:text" json:"reason,omitempty"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	ChangedAt      time.Time         `gorm:"index;not null" json:"changed_at"`
}

func (StateHistory) TableName() string {
	return "state_history"
}

// NewStateHistory records a transition. An empty actor becomes SystemActor.
func NewStateHistory(incidentID string, from, to IncidentStatus, actor, reason string, metadata map[string]interface{}) *StateHistory {
	if actor == "" {
		actor = SystemActor
	}
	return &StateHistory{
		ID:             uuid.New().String(),
		IncidentID:     incidentID,
		PreviousStatus: from,
		NewStatus:      to,
		Actor:          actor,
		Reason:         reason,
		Metadata:       datatypes.JSONMap(metadata),
		ChangedAt:      time.Now(),
	}
}
