package models

import (
	"time"
)

// DefaultCategory is assigned to posts created without a category.
const DefaultCategory = "General"

// MaxTitleLength bounds Post.Title in characters.
const MaxTitleLength = 200

// Categories lists the accepted post categories in display order.
var Categories = []string{
	"Academics",
	"Events",
	"Clubs",
	"Sports",
	"Placements",
	"General",
	"Announcements",
	"Food",
	"Hostel",
	"Lost & Found",
}

// IsValidCategory reports whether c is one of Categories.
func IsValidCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// Post represents a post on the campus feed.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	ContentMD   string    `gorm:"column:content_md;type:text;not null" json:"content_md"`
	ContentHTML string    `gorm:"column:content_html;type:text;not null" json:"content_html"`
	Category    string    `gorm:"size:50;not null;index" json:"category"`
	IsDeleted   bool      `gorm:"not null;index" json:"-"`
	Media       []Media   `gorm:"foreignKey:PostID" json:"media,omitempty"`
	Comments    []Comment `gorm:"foreignKey:PostID" json:"-"`
	// ReactionsCount is not persisted; computed at query time
	ReactionsCount int `gorm:"->;-:migration" json:"reactions_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int        `gorm:"->;-:migration" json:"comments_count"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	EditedAt      *time.Time `json:"edited_at"`
}

// CoverURL returns the URL of the first image attached to the post.
func (p *Post) CoverURL() string {
	for _, m := range p.Media {
		if m.Type == MediaTypeImage {
			return m.URL
		}
	}
	return ""
}

// PostSummary is the list representation of a post.
type PostSummary struct {
	ID             uint       `json:"id"`
	Title          string     `json:"title"`
	Category       string     `json:"category"`
	UserID         uint       `json:"user_id"`
	UserName       string     `json:"user_name"`
	ReactionsCount int        `json:"reactions_count"`
	CommentsCount  int        `json:"comments_count"`
	CoverURL       string     `json:"cover_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at"`
}

// Summary converts a loaded post into its list representation.
func (p *Post) Summary() PostSummary {
	return PostSummary{
		ID:             p.ID,
		Title:          p.Title,
		Category:       p.Category,
		UserID:         p.UserID,
		UserName:       p.User.DisplayName(),
		ReactionsCount: p.ReactionsCount,
		CommentsCount:  p.CommentsCount,
		CoverURL:       p.CoverURL(),
		CreatedAt:      p.CreatedAt,
		EditedAt:       p.EditedAt,
	}
}
