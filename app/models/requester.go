package models

import (
	"time"

	"github.com/google/uuid"
)

// Requester is the person who reported one or more incidents. Phone is the
// natural key used for deduplication.
type Requester struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	FullName     string    `gorm:"type:varchar(150);not null" json:"full_name"`
	Phone        string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone"`
	Channel      Channel   `gorm:"type:varchar(20);not null" json:"channel"`
	RegisteredAt time.Time `gorm:"not null" json:"registered_at"`
}

func (Requester) TableName() string {
	return "requesters"
}

// NewRequester builds a requester with a fresh id and registration time.
func NewRequester(fullName, phone string, channel Channel) *Requester {
	return &Requester{
		ID:           uuid.New().String(),
		FullName:     fullName,
		Phone:        phone,
		Channel:      channel,
		RegisteredAt: time.Now(),
	}
}
