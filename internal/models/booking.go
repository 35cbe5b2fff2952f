package models

import (
	"time"

	"fieldserve/internal/domain"
)

// Booking is never deleted; it ends in completed or cancelled.
type Booking struct {
	ID                 uint          `gorm:"primaryKey" json:"id"`
	ClientID           uint          `gorm:"not null;index" json:"client_id"`
	WorkerID           *uint         `gorm:"index:idx_booking_worker_time" json:"worker_id"`
	AddressID          uint          `gorm:"not null" json:"address_id"`
	SelectedTime       time.Time     `gorm:"not null;index:idx_booking_worker_time" json:"selected_time"`
	Description        string        `gorm:"type:text" json:"description"`
	Status             domain.Status `gorm:"size:20;not null;index" json:"status"`
	TotalAmountCents   int64         `gorm:"not null;default:0" json:"total_amount_cents"`
	PaymentCompleted   bool          `gorm:"default:false" json:"payment_completed"`
	ItemsApproved      bool          `gorm:"default:false" json:"items_approved"`
	WorkStartedAt      *time.Time    `json:"work_started_at"`
	WorkEndedAt        *time.Time    `json:"work_ended_at"`
	CancellationReason string        `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CancelledBy        string        `gorm:"size:20" json:"cancelled_by,omitempty"` // role
	ComplaintID        *uint         `json:"complaint_id"`
	HasReview          bool          `gorm:"default:false" json:"has_review"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`

	Address *Address `gorm:"foreignKey:AddressID" json:"address,omitempty"`
}

func (Booking) TableName() string {
	return "bookings"
}

// IsParticipant reports whether userID is the client or the assigned worker.
func (b *Booking) IsParticipant(userID uint) bool {
	return b.ClientID == userID || b.AssignedTo(userID)
}

func (b *Booking) AssignedTo(userID uint) bool {
	return b.WorkerID != nil && *b.WorkerID == userID
}
