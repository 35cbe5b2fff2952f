package models

import "time"

type Complaint struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RaisedByID   uint       `gorm:"not null;index" json:"raised_by_id"`
	RaisedByRole string     `gorm:"size:20;not null" json:"raised_by_role"`
	TargetID     uint       `gorm:"not null;index" json:"target_id"`
	BookingID    uint       `gorm:"not null;index" json:"booking_id"`
	PaymentID    *uint      `json:"payment_id"`
	Category     string     `gorm:"size:100;not null" json:"category"`
	SubCategory  string     `gorm:"size:100" json:"sub_category"`
	Priority     string     `gorm:"size:20;not null" json:"priority"`
	Description  string     `gorm:"type:text;not null" json:"description"`
	Attachments  []string   `gorm:"serializer:json;type:text" json:"attachments"`
	Status       string     `gorm:"size:20;not null;index" json:"status"`
	AdminNotes   string     `gorm:"type:text" json:"admin_notes"`
	Resolution   string     `gorm:"type:text" json:"resolution"`
	ResolvedAt   *time.Time `json:"resolved_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Complaint) TableName() string {
	return "complaints"
}
