package models

import (
	"time"
)

// MaxCommentLength bounds Comment.Content in characters.
const MaxCommentLength = 10000

// Comment is a node in a post's comment forest.
//
// Path holds the ids of every ancestor followed by the comment's own id, so a
// root comment has Path [id] and Depth 0. Path is written after the row has
// been assigned an id.
type Comment struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	PostID    uint        `gorm:"not null;index" json:"post_id"`
	ParentID  *uint       `gorm:"index" json:"parent_id"`
	UserID    uint        `gorm:"not null;index" json:"user_id"`
	User      *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	Depth     int         `gorm:"not null" json:"depth"`
	Path      CommentPath `gorm:"type:text;not null;index" json:"path"`
	IsDeleted bool        `gorm:"not null" json:"is_deleted"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
	EditedAt  *time.Time  `json:"edited_at"`
}

// IsRoot reports whether the comment has no parent.
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// UserComment is one entry of a user's comment history.
type UserComment struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	PostID    uint      `json:"post_id"`
	PostTitle string    `json:"post_title"`
}

// CommentNode is the display form of a comment with its replies attached.
type CommentNode struct {
	ID        uint           `json:"id"`
	PostID    uint           `json:"post_id"`
	ParentID  *uint          `json:"parent_id"`
	UserID    uint           `json:"user_id"`
	UserName  string         `json:"user_name"`
	Content   string         `json:"content"`
	Depth     int            `json:"depth"`
	Path      CommentPath    `json:"path"`
	IsDeleted bool           `json:"is_deleted"`
	CreatedAt time.Time      `json:"created_at"`
	EditedAt  *time.Time     `json:"edited_at"`
	Replies   []*CommentNode `json:"replies"`
}

// NewCommentNode copies c into a node with no replies. Deleted comments keep
// their position in the tree but lose their content and author.
func NewCommentNode(c *Comment) *CommentNode {
	node := &CommentNode{
		ID:        c.ID,
		PostID:    c.PostID,
		ParentID:  c.ParentID,
		UserID:    c.UserID,
		UserName:  c.User.DisplayName(),
		Content:   c.Content,
		Depth:     c.Depth,
		Path:      c.Path,
		IsDeleted: c.IsDeleted,
		CreatedAt: c.CreatedAt,
		EditedAt:  c.EditedAt,
		Replies:   []*CommentNode{},
	}
	if c.IsDeleted {
		node.Content = ""
		node.UserID = 0
		node.UserName = ""
	}
	return node
}
