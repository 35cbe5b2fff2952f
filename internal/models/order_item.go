package models

import "time"

type LineItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// OrderItem is a batch of extra items a worker proposed on a booking.
type OrderItem struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	BookingID       uint       `gorm:"not null;index" json:"booking_id"`
	Items           []LineItem `gorm:"serializer:json;type:text;not null" json:"items"`
	AdditionalNotes string     `gorm:"type:text" json:"additional_notes"`
	TotalCents      int64      `gorm:"not null" json:"total_cents"`
	Verified        bool       `gorm:"default:false;index" json:"verified"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// SumItems totals quantity times price over items.
func SumItems(items []LineItem) int64 {
	var sum int64
	for _, it := range items {
		sum += int64(it.Quantity) * it.PriceCents
	}
	return sum
}
