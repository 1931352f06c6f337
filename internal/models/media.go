package models

import "time"

// MediaType classifies an uploaded file.
type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeDocument MediaType = "document"
)

var mediaTypesByMIME = map[string]MediaType{
	"image/png":       MediaTypeImage,
	"image/jpeg":      MediaTypeImage,
	"image/webp":      MediaTypeImage,
	"application/pdf": MediaTypeDocument,
}

// MediaTypeForMIME maps an allowed MIME type to its media type.
func MediaTypeForMIME(mime string) (MediaType, bool) {
	t, ok := mediaTypesByMIME[mime]
	return t, ok
}

// Media is a file attached to a post.
type Media struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PostID       uint      `gorm:"not null;index" json:"post_id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	Type         MediaType `gorm:"size:16;not null" json:"type"`
	URL          string    `gorm:"size:512;not null" json:"url"`
	StorageKey   string    `gorm:"size:255;not null" json:"-"`
	ThumbnailURL string    `gorm:"size:512" json:"thumbnail_url,omitempty"`
	ThumbnailKey string    `gorm:"size:255" json:"-"`
	Mime         string    `gorm:"size:100;not null" json:"mime"`
	SizeBytes    int64     `gorm:"not null" json:"size_bytes"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// StorageKeys returns every blob key owned by the media row.
func (m *Media) StorageKeys() []string {
	keys := []string{m.StorageKey}
	if m.ThumbnailKey != "" {
		keys = append(keys, m.ThumbnailKey)
	}
	return keys
}

// TableName pins the table name; "media" is already plural.
func (Media) TableName() string {
	return "media"
}
