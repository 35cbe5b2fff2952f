package models

import "time"

type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BookingID uint      `gorm:"uniqueIndex;not null" json:"booking_id"`
	RaterID   uint      `gorm:"not null;index" json:"rater_id"`
	RateeID   uint      `gorm:"not null;index" json:"worker_id"`
	Rating    int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func (Review) TableName() string {
	return "reviews"
}
