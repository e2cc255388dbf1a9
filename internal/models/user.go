package models

import "time"

// User is the display profile of an account managed by the identity provider.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Nickname  string    `gorm:"size:30" json:"nickname"`
	Avatar    string    `gorm:"size:512" json:"avatar"`
	IsStaff   bool      `gorm:"not null;default:false" json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
