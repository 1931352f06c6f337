package cache

import (
	"fmt"
	"time"

	"campusfeed/internal/models"
)

const (
	PostKeyPrefix           = "post:%d"
	ReactionCountsKeyPrefix = "reactions:%s:%d:counts"
	CategoriesKey           = "posts:categories"
)

const (
	PostTTL           = 30 * time.Minute
	ReactionCountsTTL = 2 * time.Minute
	CategoriesTTL     = time.Hour
)

// PostKey is the cache key for a post detail payload.
func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// ReactionCountsKey is the cache key for the kind→count map of a target.
func ReactionCountsKey(target models.ReactionTarget) string {
	return fmt.Sprintf(ReactionCountsKeyPrefix, target.Type, target.ID)
}

// PostKeys returns every key that describes postID or reactions on it.
func PostKeys(postID uint, commentIDs []uint) []string {
	keys := make([]string, 0, len(commentIDs)+2)
	keys = append(keys, PostKey(postID), ReactionCountsKey(models.PostTarget(postID)))
	for _, id := range commentIDs {
		keys = append(keys, ReactionCountsKey(models.CommentTarget(id)))
	}
	return keys
}
