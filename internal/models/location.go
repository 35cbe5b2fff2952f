package models

import (
	"time"

	"gorm.io/gorm"
)

// WorkerLocation stores the last reported position of a worker.
// Separate lat/lng columns keep bounding-box queries portable across drivers.
type WorkerLocation struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	Latitude      float64        `gorm:"not null;index:idx_location_lat_lng" json:"latitude"`
	Longitude     float64        `gorm:"not null;index:idx_location_lat_lng" json:"longitude"`
	LastUpdatedAt time.Time      `gorm:"not null;index" json:"last_updated_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (WorkerLocation) TableName() string {
	return "worker_locations"
}
