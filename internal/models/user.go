// Package models contains data structures for the application's domain models.
package models

import "time"

// User is an authenticated member of the campus feed.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email,omitempty"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Verified     bool      `gorm:"not null;default:false" json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

// DisplayName returns the name shown to other users.
func (u *User) DisplayName() string {
	if u == nil || u.Name == "" {
		return "Someone"
	}
	return u.Name
}

// UserStats is the activity summary shown on a profile.
type UserStats struct {
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
}

// UserProfile is the public view of a user.
type UserProfile struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Stats     UserStats `json:"stats"`
}
