package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"campusfeed/internal/cache"
	"campusfeed/internal/events"
	"campusfeed/internal/models"
	"campusfeed/internal/observability"
	"campusfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type CommentService struct {
	tx          repository.Transactor
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	fanout      *Fanout
	cache       *cache.Store
	publisher   events.Publisher
}

type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	ParentID *uint
	Content  string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	tx repository.Transactor,
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	fanout *Fanout,
	cacheStore *cache.Store,
	publisher events.Publisher,
) *CommentService {
	return &CommentService{
		tx:          tx,
		commentRepo: commentRepo,
		postRepo:    postRepo,
		fanout:      fanout,
		cache:       cacheStore,
		publisher:   publisher,
	}
}

func validateCommentContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLength {
		return "", models.NewValidationError("Comment too long (max 10000 characters)")
	}
	return content, nil
}

// visiblePost loads a post and hides soft-deleted ones.
func visiblePost(ctx context.Context, repo repository.PostRepository, id uint) (*models.Post, error) {
	post, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.IsDeleted {
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, nil
}

// CreateComment inserts the comment, assigns its path once the id is known
// and fans out the notification, all in one transaction.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (_ *models.Comment, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "comments", "create",
		attribute.Int64("post.id", int64(in.PostID)))
	defer func() { observability.EndSpan(span, err) }()

	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}

	var (
		created *models.Comment
		notice  *models.Notification
	)
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		comments := s.commentRepo.WithTx(tx)

		post, err := visiblePost(ctx, s.postRepo.WithTx(tx), in.PostID)
		if err != nil {
			return err
		}

		var parent *models.Comment
		if in.ParentID != nil {
			parent, err = comments.GetByID(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if parent.IsDeleted {
				return models.NewValidationError("Cannot reply to a deleted comment")
			}
			if parent.PostID != post.ID {
				return models.NewValidationError("Parent mismatch")
			}
		}

		comment := &models.Comment{
			PostID:   post.ID,
			ParentID: in.ParentID,
			UserID:   in.UserID,
			Content:  content,
		}
		if err := comments.Create(ctx, comment); err != nil {
			return err
		}

		path := models.RootPath(comment.ID)
		if parent != nil {
			path = parent.Path.Child(comment.ID)
		}
		if err := comments.SetPath(ctx, comment.ID, path); err != nil {
			return err
		}
		comment.Path = path
		comment.Depth = path.Depth()

		notice, err = s.fanout.WithTx(tx).CommentAdded(ctx, in.UserID, post, parent, comment)
		if err != nil {
			return err
		}

		created, err = comments.GetByID(ctx, comment.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	kind := "root"
	if created.ParentID != nil {
		kind = "reply"
	}
	observability.CommentsCreated.WithLabelValues(kind).Inc()
	_ = s.cache.Invalidate(ctx, cache.PostKey(created.PostID))
	s.fanout.Deliver(ctx, notice)
	events.Emit(ctx, s.publisher, events.New(events.CommentCreated, events.CommentPayload{
		CommentID: created.ID,
		PostID:    created.PostID,
		ParentID:  created.ParentID,
		UserID:    created.UserID,
		Depth:     created.Depth,
	}))

	return created, nil
}

// ListTree returns the comment forest of a post.
func (s *CommentService) ListTree(ctx context.Context, postID uint) ([]*models.CommentNode, error) {
	if _, err := visiblePost(ctx, s.postRepo, postID); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return buildCommentTree(comments, isTopLevel), nil
}

// ListThread returns the subtree rooted at commentID.
func (s *CommentService) ListThread(ctx context.Context, commentID uint) (*models.CommentNode, error) {
	root, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if _, err := visiblePost(ctx, s.postRepo, root.PostID); err != nil {
		return nil, err
	}
	subtree, err := s.commentRepo.ListSubtree(ctx, root)
	if err != nil {
		return nil, err
	}
	forest := buildCommentTree(subtree, func(c *models.Comment) bool { return c.ID == root.ID })
	if len(forest) == 0 {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return forest[0], nil
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.IsDeleted {
		return nil, models.NewNotFoundError("Comment", in.CommentID)
	}
	if comment.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own comments")
	}
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}

	if err := s.commentRepo.UpdateContent(ctx, comment.ID, content, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// DeleteComment soft-deletes the comment. Replies stay in place.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return err
	}
	if comment.IsDeleted {
		return models.NewNotFoundError("Comment", in.CommentID)
	}
	if comment.UserID != in.UserID {
		return models.NewForbiddenError("You can only delete your own comments")
	}
	if err := s.commentRepo.SoftDelete(ctx, comment.ID); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, cache.PostKey(comment.PostID))
	return nil
}
