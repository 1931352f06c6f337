package repository

import (
	"context"
	"strings"

	"campusfeed/internal/models"

	"gorm.io/gorm"
)

// Post list sort orders.
const (
	SortNewest  = "newest"
	SortPopular = "popular"
)

// PostFilter selects a page of visible posts.
type PostFilter struct {
	UserID   uint
	Category string
	Search   string
	Sort     string
	Limit    int
	Offset   int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	WithTx(tx *gorm.DB) PostRepository
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetDetail(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]*models.Post, int64, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	CountByCategory(ctx context.Context) (map[string]int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) WithTx(tx *gorm.DB) PostRepository {
	return &postRepository{db: bindTx(r.db, tx)}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("User", "Media", "Comments").Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetByID loads the bare post row, including soft-deleted posts.
func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

// GetDetail loads a post with its author, media and counters.
func (r *postRepository) GetDetail(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := withAuthor(withCounters(r.db.WithContext(ctx).Model(&models.Post{}))).
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("media.id ASC") }).
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]*models.Post, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Post{}).Where("posts.is_deleted = ?", false)
		if filter.UserID != 0 {
			q = q.Where("posts.user_id = ?", filter.UserID)
		}
		if filter.Category != "" {
			q = q.Where("posts.category = ?", filter.Category)
		}
		if s := strings.TrimSpace(filter.Search); s != "" {
			like := "%" + escapeLike(strings.ToLower(s)) + "%"
			q = q.Where(`(LOWER(posts.title) LIKE ? ESCAPE '\' OR LOWER(posts.content_md) LIKE ? ESCAPE '\')`, like, like)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	order := "posts.created_at DESC, posts.id DESC"
	if filter.Sort == SortPopular {
		order = "reactions_count DESC, posts.created_at DESC, posts.id DESC"
	}

	var posts []*models.Post
	err := withAuthor(withCounters(base())).
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("media.id ASC") }).
		Order(order).
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

// Update writes the editable columns of post.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(&models.Post{ID: post.ID}).
		Select("title", "content_md", "content_html", "category", "edited_at").
		Updates(post).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

type categoryCount struct {
	Category string
	Count    int64
}

// CountByCategory counts visible posts per category.
func (r *postRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	var rows []categoryCount
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("category, COUNT(*) AS count").
		Where("is_deleted = ?", false).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Category] = row.Count
	}
	return out, nil
}

func withCounters(q *gorm.DB) *gorm.DB {
	return q.Select(
		"posts.*, "+
			"(SELECT COUNT(*) FROM reactions WHERE reactions.target_type = ? AND reactions.target_id = posts.id) AS reactions_count, "+
			"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_deleted = ?) AS comments_count",
		models.TargetPost, false,
	)
}

// withAuthor preloads only the public columns of the author.
func withAuthor(q *gorm.DB) *gorm.DB {
	return q.Preload("User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "created_at")
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
