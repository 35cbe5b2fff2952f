package models

import "time"

type Address struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Street     string    `gorm:"size:255;not null" json:"street"`
	City       string    `gorm:"size:100" json:"city"`
	Area       string    `gorm:"size:100" json:"area"`
	PostalCode string    `gorm:"size:20" json:"postal_code"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Address) TableName() string {
	return "addresses"
}
