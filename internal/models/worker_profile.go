package models

import (
	"time"

	"gorm.io/gorm"
)

type WorkerProfile struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	DisplayName   string         `gorm:"size:100;not null" json:"display_name"`
	Bio           string         `gorm:"type:text" json:"bio"`
	IsVerified    bool           `gorm:"default:false;index" json:"is_verified"`
	IsActive      bool           `gorm:"default:true;index" json:"is_active"`
	AverageRating float64        `gorm:"default:0" json:"average_rating"`
	RatingCount   int            `gorm:"default:0" json:"rating_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (WorkerProfile) TableName() string {
	return "worker_profiles"
}

// WorkerService is a worker's priced offering within one service section.
type WorkerService struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	WorkerID       uint           `gorm:"not null;uniqueIndex:idx_worker_section" json:"worker_id"` // users.id
	SectionID      uint           `gorm:"not null;uniqueIndex:idx_worker_section;index" json:"section_id"`
	BasePriceCents int64          `gorm:"not null" json:"base_price_cents"`
	Unit           string         `gorm:"size:20" json:"unit"` // per_service, per_hour
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Section ServiceSection `gorm:"foreignKey:SectionID" json:"section,omitempty"`
}

func (WorkerService) TableName() string {
	return "worker_services"
}

// ServiceSection is a node of the service taxonomy, managed elsewhere.
type ServiceSection struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Slug      string         `gorm:"uniqueIndex;size:100;not null" json:"slug"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ServiceSection) TableName() string {
	return "service_sections"
}
