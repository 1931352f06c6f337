package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"campusfeed/internal/cache"
	"campusfeed/internal/events"
	"campusfeed/internal/markdown"
	"campusfeed/internal/middleware"
	"campusfeed/internal/models"
	"campusfeed/internal/observability"
	"campusfeed/internal/repository"
	"campusfeed/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	maxContentLen    = 50000
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Repositories bundles the data access layer handed to services.
type Repositories struct {
	Users         repository.UserRepository
	Posts         repository.PostRepository
	Comments      repository.CommentRepository
	Reactions     repository.ReactionRepository
	Notifications repository.NotificationRepository
	Media         repository.MediaRepository
}

// NewRepositories builds every repository over db.
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:         repository.NewUserRepository(db),
		Posts:         repository.NewPostRepository(db),
		Comments:      repository.NewCommentRepository(db),
		Reactions:     repository.NewReactionRepository(db),
		Notifications: repository.NewNotificationRepository(db),
		Media:         repository.NewMediaRepository(db),
	}
}

type PostService struct {
	tx        repository.Transactor
	repos     Repositories
	reactions *ReactionService
	store     storage.Store
	cache     *cache.Store
	publisher events.Publisher
}

type CreatePostInput struct {
	UserID   uint
	Title    string
	Content  string
	Category string
}

// UpdatePostInput carries a partial update; nil fields are left alone.
type UpdatePostInput struct {
	UserID   uint
	PostID   uint
	Title    *string
	Content  *string
	Category *string
}

type ListPostsInput struct {
	UserID   uint
	Category string
	Search   string
	Sort     string
	Page     int
	Limit    int
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// PostDetail is a post together with its live reaction summary.
type PostDetail struct {
	*models.Post
	Reactions *models.ReactionSummary `json:"reactions"`
}

// PostPage is one page of the post list.
type PostPage struct {
	Posts []models.PostSummary `json:"posts"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// CategoryCount is the number of visible posts in a category.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// CascadeResult summarizes the rows removed by DeletePost.
type CascadeResult struct {
	PostID           uint  `json:"post_id"`
	ReactionsDeleted int64 `json:"reactions_deleted"`
	CommentsDeleted  int64 `json:"comments_deleted"`
	MediaDeleted     int   `json:"media_deleted"`
	NoticesDetached  int64 `json:"notifications_detached"`
}

func NewPostService(
	tx repository.Transactor,
	repos Repositories,
	reactions *ReactionService,
	store storage.Store,
	cacheStore *cache.Store,
	publisher events.Publisher,
) *PostService {
	return &PostService{
		tx:        tx,
		repos:     repos,
		reactions: reactions,
		store:     store,
		cache:     cacheStore,
		publisher: publisher,
	}
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return "", models.NewValidationError("Title too long (max 200 characters)")
	}
	return title, nil
}

func validateCategory(category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return models.DefaultCategory, nil
	}
	if !models.IsValidCategory(category) {
		return "", models.NewValidationError("Invalid category")
	}
	return category, nil
}

func renderContent(content string) (string, error) {
	if utf8.RuneCountInString(content) > maxContentLen {
		return "", models.NewValidationError("Content too long (max 50000 characters)")
	}
	html, err := markdown.Render(content)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return html, nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	category, err := validateCategory(in.Category)
	if err != nil {
		return nil, err
	}
	html, err := renderContent(in.Content)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:      in.UserID,
		Title:       title,
		ContentMD:   in.Content,
		ContentHTML: html,
		Category:    category,
	}
	if err := s.repos.Posts.Create(ctx, post); err != nil {
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, cache.CategoriesKey)

	return s.repos.Posts.GetDetail(ctx, post.ID)
}

// GetPost returns a visible post with media, counters and the reaction
// summary as seen by callerID (zero for anonymous callers).
func (s *PostService) GetPost(ctx context.Context, id, callerID uint) (*PostDetail, error) {
	var post models.Post
	err := s.cache.CacheAside(ctx, cache.PostKey(id), &post, cache.PostTTL, func(ctx context.Context) error {
		loaded, err := s.repos.Posts.GetDetail(ctx, id)
		if err != nil {
			return err
		}
		if loaded.IsDeleted {
			return models.NewNotFoundError("Post", id)
		}
		post = *loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary, err := s.reactions.Summary(ctx, models.PostTarget(id), callerID)
	if err != nil {
		return nil, err
	}
	return &PostDetail{Post: &post, Reactions: summary}, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := visiblePost(ctx, s.repos.Posts, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}

	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		if post.Title, err = validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		html, err := renderContent(*in.Content)
		if err != nil {
			return nil, err
		}
		post.ContentMD = *in.Content
		post.ContentHTML = html
	}
	if in.Category != nil {
		if post.Category, err = validateCategory(*in.Category); err != nil {
			return nil, err
		}
	}
	now := time.Now().UTC()
	post.EditedAt = &now

	if err := s.repos.Posts.Update(ctx, post); err != nil {
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, cache.PostKey(post.ID), cache.CategoriesKey)

	return s.repos.Posts.GetDetail(ctx, post.ID)
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*PostPage, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	sort := repository.SortNewest
	if strings.EqualFold(in.Sort, repository.SortPopular) {
		sort = repository.SortPopular
	}

	posts, total, err := s.repos.Posts.List(ctx, repository.PostFilter{
		UserID:   in.UserID,
		Category: strings.TrimSpace(in.Category),
		Search:   in.Search,
		Sort:     sort,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]models.PostSummary, 0, len(posts))
	for _, p := range posts {
		summaries = append(summaries, p.Summary())
	}
	return &PostPage{Posts: summaries, Total: total, Page: page, Limit: limit}, nil
}

// ListCategories returns every category with its visible post count.
func (s *PostService) ListCategories(ctx context.Context) ([]CategoryCount, error) {
	var out []CategoryCount
	err := s.cache.CacheAside(ctx, cache.CategoriesKey, &out, cache.CategoriesTTL, func(ctx context.Context) error {
		counts, err := s.repos.Posts.CountByCategory(ctx)
		if err != nil {
			return err
		}
		out = make([]CategoryCount, 0, len(models.Categories))
		for _, name := range models.Categories {
			out = append(out, CategoryCount{Name: name, Count: counts[name]})
		}
		return nil
	})
	return out, err
}

// DeletePost removes a post and everything that depends on it in one
// transaction: reactions on the post, reactions on its comments, notification
// references, comments, media rows and finally the post. Blobs and caches are
// cleaned up after commit.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (_ *CascadeResult, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "posts", "delete",
		attribute.Int64("post.id", int64(in.PostID)))
	defer func() { observability.EndSpan(span, err) }()

	result := &CascadeResult{PostID: in.PostID}
	var (
		removedMedia []models.Media
		commentIDs   []uint
	)

	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		posts := s.repos.Posts.WithTx(tx)
		comments := s.repos.Comments.WithTx(tx)
		reactions := s.repos.Reactions.WithTx(tx)

		post, err := posts.GetByID(ctx, in.PostID)
		if err != nil {
			return err
		}
		if post.UserID != in.UserID {
			return models.NewForbiddenError("You can only delete your own posts")
		}

		if commentIDs, err = comments.IDsByPost(ctx, post.ID); err != nil {
			return err
		}

		onPost, err := reactions.DeleteByTarget(ctx, models.PostTarget(post.ID))
		if err != nil {
			return err
		}
		onComments, err := reactions.DeleteByPostComments(ctx, post.ID)
		if err != nil {
			return err
		}
		result.ReactionsDeleted = onPost + onComments

		if result.NoticesDetached, err = s.repos.Notifications.WithTx(tx).DetachPost(ctx, post.ID); err != nil {
			return err
		}
		if result.CommentsDeleted, err = comments.DeleteByPost(ctx, post.ID); err != nil {
			return err
		}
		if removedMedia, err = s.repos.Media.WithTx(tx).DeleteByPost(ctx, post.ID); err != nil {
			return err
		}
		result.MediaDeleted = len(removedMedia)

		return posts.Delete(ctx, post.ID)
	})
	if err != nil {
		return nil, err
	}

	s.releaseBlobs(ctx, removedMedia)
	keys := append(cache.PostKeys(in.PostID, commentIDs), cache.CategoriesKey)
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to invalidate post caches", "post_id", in.PostID, "error", err)
	}
	observability.PostsDeleted.Inc()
	events.Emit(ctx, s.publisher, events.New(events.PostDeleted, events.PostDeletedPayload{
		PostID:           in.PostID,
		UserID:           in.UserID,
		CommentsDeleted:  result.CommentsDeleted,
		ReactionsDeleted: result.ReactionsDeleted,
		MediaDeleted:     result.MediaDeleted,
	}))

	return result, nil
}

func (s *PostService) releaseBlobs(ctx context.Context, media []models.Media) {
	if s.store == nil {
		return
	}
	for i := range media {
		for _, key := range media[i].StorageKeys() {
			if err := s.store.Delete(ctx, key); err != nil {
				middleware.Logger.WarnContext(ctx, "failed to delete media blob", "key", key, "error", err)
			}
		}
	}
}
