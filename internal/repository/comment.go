package repository

import (
	"context"
	"time"

	"campusfeed/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	WithTx(tx *gorm.DB) CommentRepository
	Create(ctx context.Context, comment *models.Comment) error
	SetPath(ctx context.Context, id uint, path models.CommentPath) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	ListSubtree(ctx context.Context, root *models.Comment) ([]*models.Comment, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.UserComment, error)
	UpdateContent(ctx context.Context, id uint, content string, editedAt time.Time) error
	SoftDelete(ctx context.Context, id uint) error
	IDsByPost(ctx context.Context, postID uint) ([]uint, error)
	DeleteByPost(ctx context.Context, postID uint) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) WithTx(tx *gorm.DB) CommentRepository {
	return &commentRepository{db: bindTx(r.db, tx)}
}

// Create inserts the row without a path; SetPath completes it once the id is known.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) SetPath(ctx context.Context, id uint, path models.CommentPath) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		Updates(map[string]any{"path": path, "depth": path.Depth()})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := withCommentAuthor(r.db.WithContext(ctx)).First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &comment, nil
}

// ListByPost returns every comment of the post, deleted ones included, in
// creation order.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := withCommentAuthor(r.db.WithContext(ctx)).
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

// ListSubtree returns root and all of its descendants using the path prefix.
func (r *commentRepository) ListSubtree(ctx context.Context, root *models.Comment) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := withCommentAuthor(r.db.WithContext(ctx)).
		Where("post_id = ? AND (path = ? OR path LIKE ?)", root.PostID, root.Path.String(), root.Path.DescendantPattern()).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

// ListByUser returns the user's newest visible comments with the title of
// the post each belongs to. Comments on deleted posts are left out.
func (r *commentRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.UserComment, error) {
	out := []models.UserComment{}
	err := r.db.WithContext(ctx).
		Table("comments").
		Select("comments.id, comments.content, comments.created_at, comments.post_id, posts.title AS post_title").
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("comments.user_id = ? AND comments.is_deleted = ? AND posts.is_deleted = ?", userID, false, false).
		Order("comments.created_at DESC, comments.id DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string, editedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]any{"content": content, "edited_at": editedAt})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) SoftDelete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("is_deleted", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) IDsByPost(ctx context.Context, postID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// DeleteByPost hard-deletes every comment of the post in one statement, so
// parent_id references between them are resolved together.
func (r *commentRepository) DeleteByPost(ctx context.Context, postID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Comment{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func withCommentAuthor(q *gorm.DB) *gorm.DB {
	return q.Preload("User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "created_at")
	})
}
