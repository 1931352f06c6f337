package models

import (
	"fmt"
	"strings"
	"time"
)

// TargetType tags what a reaction points at.
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
)

// ReactionTarget is either a post or a comment, never both.
type ReactionTarget struct {
	Type TargetType `json:"type"`
	ID   uint       `json:"id"`
}

func PostTarget(id uint) ReactionTarget {
	return ReactionTarget{Type: TargetPost, ID: id}
}

func CommentTarget(id uint) ReactionTarget {
	return ReactionTarget{Type: TargetComment, ID: id}
}

// Validate rejects unknown tags and zero ids.
func (t ReactionTarget) Validate() error {
	if t.Type != TargetPost && t.Type != TargetComment {
		return NewValidationError(fmt.Sprintf("Invalid reaction target %q", t.Type))
	}
	if t.ID == 0 {
		return NewValidationError("Invalid target ID")
	}
	return nil
}

func (t ReactionTarget) String() string {
	return fmt.Sprintf("%s:%d", t.Type, t.ID)
}

// TargetFromRefs builds a target from the optional post_id/comment_id pair of
// a request. Exactly one of them must be set.
func TargetFromRefs(postID, commentID *uint) (ReactionTarget, error) {
	switch {
	case postID != nil && commentID != nil:
		return ReactionTarget{}, NewValidationError("Specify either post_id or comment_id, not both")
	case postID != nil:
		t := PostTarget(*postID)
		return t, t.Validate()
	case commentID != nil:
		t := CommentTarget(*commentID)
		return t, t.Validate()
	default:
		return ReactionTarget{}, NewValidationError("post_id or comment_id required")
	}
}

// ReactionKind is one of a closed set of reaction tags.
type ReactionKind string

const (
	ReactionLike       ReactionKind = "like"
	ReactionHelpful    ReactionKind = "helpful"
	ReactionFunny      ReactionKind = "funny"
	ReactionInsightful ReactionKind = "insightful"
	ReactionCelebrate  ReactionKind = "celebrate"
)

// ReactionKinds lists the accepted kinds.
var ReactionKinds = []ReactionKind{
	ReactionLike,
	ReactionHelpful,
	ReactionFunny,
	ReactionInsightful,
	ReactionCelebrate,
}

// ParseReactionKind normalizes s and checks it against ReactionKinds. An empty
// string selects ReactionLike.
func ParseReactionKind(s string) (ReactionKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ReactionLike, nil
	}
	for _, k := range ReactionKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", NewValidationError(fmt.Sprintf("Invalid reaction type %q", s))
}

// Reaction is one user's reaction of one kind on one target. The unique index
// makes repeated submissions collapse into a single row.
type Reaction struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	TargetType TargetType   `gorm:"size:16;not null;uniqueIndex:idx_reactions_target_user_kind,priority:1" json:"target_type"`
	TargetID   uint         `gorm:"not null;uniqueIndex:idx_reactions_target_user_kind,priority:2" json:"target_id"`
	UserID     uint         `gorm:"not null;uniqueIndex:idx_reactions_target_user_kind,priority:3;index" json:"user_id"`
	Kind       ReactionKind `gorm:"size:32;not null;uniqueIndex:idx_reactions_target_user_kind,priority:4" json:"type"`
	CreatedAt  time.Time    `json:"created_at"`
}

// NewReaction builds an unsaved reaction row.
func NewReaction(target ReactionTarget, userID uint, kind ReactionKind) *Reaction {
	return &Reaction{
		TargetType: target.Type,
		TargetID:   target.ID,
		UserID:     userID,
		Kind:       kind,
	}
}

// Target returns the tagged target of the row.
func (r *Reaction) Target() ReactionTarget {
	return ReactionTarget{Type: r.TargetType, ID: r.TargetID}
}

// ReactionSummary is the aggregate view of a target's reactions.
type ReactionSummary struct {
	Counts        map[ReactionKind]int64 `json:"counts"`
	UserReactions []ReactionKind         `json:"user_reactions"`
	Total         int64                  `json:"total"`
}
