package models

import (
	"time"
)

// Payment is one attempt against a booking. At most one per booking is paid.
type Payment struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	BookingID     uint       `gorm:"not null;index" json:"booking_id"`
	PayerID       uint       `gorm:"not null;index" json:"payer_id"`
	Method        string     `gorm:"size:20;not null" json:"method"` // cash | gateway
	TransactionID *string    `gorm:"size:64;uniqueIndex" json:"transaction_id"`
	ValidationRef string     `gorm:"size:128" json:"-"`
	AmountCents   int64      `gorm:"not null" json:"amount_cents"`
	Currency      string     `gorm:"size:3" json:"currency"`
	Status        string     `gorm:"size:20;not null;index" json:"status"` // pending, paid, failed, cancelled, refunded
	Metadata      string     `gorm:"type:text" json:"-"`                   // gateway response JSON
	PaidAt        *time.Time `json:"paid_at"`
	RefundedAt    *time.Time `json:"refunded_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
