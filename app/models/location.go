package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCity is applied when a location is created without a city.
const DefaultCity = "Santa Cruz de la Sierra"

// Location describes where an incident happened.
type Location struct {
	ID          string    `gorm:"type:char(36);primaryKey" json:"id"`
	Description string    `gorm:"type:text" json:"description"`
	Reference   string    `gorm:"type:text" json:"reference,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	City        string    `gorm:"type:varchar(100)" json:"city"`
	District    string    `gorm:"type:varchar(100);index" json:"district,omitempty"`
	Zone        string    `gorm:"type:varchar(100)" json:"zone,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (Location) TableName() string {
	return "locations"
}

// NewLocation builds a location with a fresh id; an empty city becomes DefaultCity.
func NewLocation(description string, lat, lon *float64, city, district, zone string) *Location {
	if city == "" {
		city = DefaultCity
	}
	return &Location{
		ID:          uuid.New().String(),
		Description: description,
		Latitude:    lat,
		Longitude:   lon,
		City:        city,
		District:    district,
		Zone:        zone,
		CreatedAt:   time.Now(),
	}
}
