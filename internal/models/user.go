package models

import (
	"time"

	"fieldserve/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FullName  string         `gorm:"size:255" json:"full_name"`
	Phone     string         `gorm:"size:32" json:"phone"`
	Role      string         `gorm:"size:20;not null;index" json:"role"` // CLIENT | WORKER | ADMIN
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	FCMToken  string         `gorm:"size:512" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	WorkerProfile *WorkerProfile  `gorm:"foreignKey:UserID" json:"worker_profile,omitempty"`
	Location      *WorkerLocation `gorm:"foreignKey:UserID" json:"location,omitempty"`
}

func (u *User) IsWorker() bool { return u.Role == domain.RoleWorker }
func (u *User) IsClient() bool { return u.Role == domain.RoleClient }
func (u *User) IsAdmin() bool  { return u.Role == domain.RoleAdmin }
