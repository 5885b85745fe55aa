package models

import "time"

// User is an account in the system. Only admins can authenticate;
// regular users exist as borrowers and reservation holders.
type User struct {
	ID           string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:255;not null" json:"username"`
	DisplayName  string     `gorm:"size:255;not null" json:"displayName"`
	PasswordHash string     `gorm:"size:100" json:"-"`
	IsAdmin      bool       `gorm:"not null;default:false" json:"isAdmin"`
	LastLoginAt  *time.Time `gorm:"index" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (User) TableName() string { return "users" }
