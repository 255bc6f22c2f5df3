package models

import (
	"time"
)

type User struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username    string     `gorm:"type:varchar(150);not null;uniqueIndex" json:"username"`
	Password    string     `gorm:"type:varchar(128);not null" json:"-"`
	FirstName   string     `gorm:"type:varchar(150);not null;default:''" json:"first_name"`
	LastName    string     `gorm:"type:varchar(150);not null;default:''" json:"last_name"`
	Email       string     `gorm:"type:varchar(254);not null;default:''" json:"email"`
	Role        *int       `json:"role"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	IsSuperuser bool       `gorm:"not null;default:false" json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login"`
	DateJoined  time.Time  `gorm:"index;not null" json:"date_joined"`
}

// CacheEntry indexes a cached upstream response. Value is empty when the
// payload lives in object storage.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;type:varchar(512);not null"`
	Value     []byte
	SizeBytes int64     `gorm:"not null;default:-1"`
	StoredAt  time.Time `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

func (User) TableName() string {
	return "users"
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}
