package models

import "time"

// NotificationKind tags the event a notification was derived from.
type NotificationKind string

const (
	NotificationCommentReply    NotificationKind = "comment_reply"
	NotificationPostReaction    NotificationKind = "post_reaction"
	NotificationCommentReaction NotificationKind = "comment_reaction"
)

// MaxNotificationPage caps how many notifications a single list returns.
const MaxNotificationPage = 50

// Notification is a notice delivered to UserID about something ActorID did.
// PostID and CommentID are nulled when the referenced post is deleted.
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	ActorID   uint             `gorm:"not null" json:"actor_id"`
	Kind      NotificationKind `gorm:"size:32;not null" json:"type"`
	Content   string           `gorm:"size:500;not null" json:"content"`
	PostID    *uint            `gorm:"index" json:"post_id"`
	CommentID *uint            `gorm:"index" json:"comment_id"`
	IsRead    bool             `gorm:"not null;index" json:"is_read"`
	CreatedAt time.Time        `gorm:"index:idx_notifications_user_created,priority:2" json:"created_at"`
}

// NotificationView is a notification with the actor's display name attached.
type NotificationView struct {
	*Notification
	ActorName string `json:"actor_name"`
}
