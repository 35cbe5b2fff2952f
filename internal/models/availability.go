package models

import (
	"strings"
	"time"
)

// WorkerAvailability is a worker's daily window plus excluded weekdays.
type WorkerAvailability struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"worker_id"`
	StartTime string    `gorm:"size:5;not null" json:"start_time"` // HH:MM
	EndTime   string    `gorm:"size:5;not null" json:"end_time"`   // HH:MM
	Weekends  string    `gorm:"size:255" json:"-"`                 // comma separated day names
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (WorkerAvailability) TableName() string {
	return "worker_availabilities"
}

// WeekendDays returns the excluded day names, trimmed and lower-cased.
func (a *WorkerAvailability) WeekendDays() []string {
	var out []string
	for _, d := range strings.Split(a.Weekends, ",") {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func (a *WorkerAvailability) IsWeekend(day time.Weekday) bool {
	name := strings.ToLower(day.String())
	for _, d := range a.WeekendDays() {
		if d == name {
			return true
		}
	}
	return false
}
