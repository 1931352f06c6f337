package service

import (
	"context"

	"campusfeed/internal/cache"
	"campusfeed/internal/events"
	"campusfeed/internal/featureflags"
	"campusfeed/internal/middleware"
	"campusfeed/internal/models"
	"campusfeed/internal/observability"
	"campusfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type ReactionService struct {
	tx           repository.Transactor
	reactionRepo repository.ReactionRepository
	postRepo     repository.PostRepository
	commentRepo  repository.CommentRepository
	fanout       *Fanout
	cache        *cache.Store
	flags        *featureflags.Manager
	publisher    events.Publisher
}

type ReactionInput struct {
	UserID uint
	Target models.ReactionTarget
	Kind   string
}

// ReactionResult reports whether AddReaction wrote a new row.
type ReactionResult struct {
	Applied bool                  `json:"applied"`
	Kind    models.ReactionKind   `json:"type"`
	Target  models.ReactionTarget `json:"target"`
}

func NewReactionService(
	tx repository.Transactor,
	reactionRepo repository.ReactionRepository,
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	fanout *Fanout,
	cacheStore *cache.Store,
	flags *featureflags.Manager,
	publisher events.Publisher,
) *ReactionService {
	return &ReactionService{
		tx:           tx,
		reactionRepo: reactionRepo,
		postRepo:     postRepo,
		commentRepo:  commentRepo,
		fanout:       fanout,
		cache:        cacheStore,
		flags:        flags,
		publisher:    publisher,
	}
}

// resolveTarget loads the live post (and comment) a target points at.
func resolveTarget(ctx context.Context, posts repository.PostRepository, comments repository.CommentRepository, target models.ReactionTarget) (*models.Post, *models.Comment, error) {
	if target.Type == models.TargetPost {
		post, err := visiblePost(ctx, posts, target.ID)
		return post, nil, err
	}

	comment, err := comments.GetByID(ctx, target.ID)
	if err != nil {
		return nil, nil, err
	}
	if comment.IsDeleted {
		return nil, nil, models.NewNotFoundError("Comment", target.ID)
	}
	post, err := visiblePost(ctx, posts, comment.PostID)
	if err != nil {
		return nil, nil, err
	}
	return post, comment, nil
}

// AddReaction records the reaction. Repeating it is not an error: the result
// reports Applied=false and nothing else happens.
func (s *ReactionService) AddReaction(ctx context.Context, in ReactionInput) (_ *ReactionResult, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "reactions", "add",
		attribute.String("reaction.target", string(in.Target.Type)),
		attribute.Int64("reaction.target_id", int64(in.Target.ID)))
	defer func() { observability.EndSpan(span, err) }()

	kind, err := models.ParseReactionKind(in.Kind)
	if err != nil {
		return nil, err
	}
	if err := in.Target.Validate(); err != nil {
		return nil, err
	}

	var (
		applied bool
		notice  *models.Notification
		postID  uint
	)
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		post, comment, err := resolveTarget(ctx, s.postRepo.WithTx(tx), s.commentRepo.WithTx(tx), in.Target)
		if err != nil {
			return err
		}
		postID = post.ID

		applied, err = s.reactionRepo.WithTx(tx).Insert(ctx, models.NewReaction(in.Target, in.UserID, kind))
		if err != nil || !applied {
			return err
		}

		notice, err = s.fanout.WithTx(tx).ReactionAdded(ctx, in.UserID, kind, post, comment)
		return err
	})
	if err != nil {
		return nil, err
	}

	outcome := "duplicate"
	if applied {
		outcome = "applied"
		s.invalidate(ctx, in.Target, postID)
		s.fanout.Deliver(ctx, notice)
		events.Emit(ctx, s.publisher, events.New(events.ReactionCreated, events.ReactionPayload{
			TargetType: string(in.Target.Type),
			TargetID:   in.Target.ID,
			UserID:     in.UserID,
			Kind:       string(kind),
		}))
	}
	observability.ReactionsApplied.WithLabelValues(string(in.Target.Type), outcome).Inc()

	return &ReactionResult{Applied: applied, Kind: kind, Target: in.Target}, nil
}

// RemoveReaction deletes the caller's reaction of the given kind.
func (s *ReactionService) RemoveReaction(ctx context.Context, in ReactionInput) error {
	kind, err := models.ParseReactionKind(in.Kind)
	if err != nil {
		return err
	}
	if err := in.Target.Validate(); err != nil {
		return err
	}

	removed, err := s.reactionRepo.Delete(ctx, in.Target, in.UserID, kind)
	if err != nil {
		return err
	}
	if removed == 0 {
		return models.NewNotFoundError("Reaction", in.Target.String())
	}

	var postID uint
	if in.Target.Type == models.TargetPost {
		postID = in.Target.ID
	}
	s.invalidate(ctx, in.Target, postID)
	return nil
}

func (s *ReactionService) invalidate(ctx context.Context, target models.ReactionTarget, postID uint) {
	keys := []string{cache.ReactionCountsKey(target)}
	if target.Type == models.TargetPost && postID != 0 {
		keys = append(keys, cache.PostKey(postID))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to invalidate reaction cache", "target", target.String(), "error", err)
	}
}

// Summary returns per-kind counts for target and, when callerID is set, the
// kinds the caller has used. Counts may come from cache; the caller's kinds
// are always read from the database.
func (s *ReactionService) Summary(ctx context.Context, target models.ReactionTarget, callerID uint) (*models.ReactionSummary, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if _, _, err := resolveTarget(ctx, s.postRepo, s.commentRepo, target); err != nil {
		return nil, err
	}

	var (
		counts map[models.ReactionKind]int64
		mine   = []models.ReactionKind{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetch := func(ctx context.Context) error {
			var err error
			counts, err = s.reactionRepo.CountsByTarget(ctx, target)
			return err
		}
		if !s.flags.On(featureflags.ReactionCountCache) {
			return fetch(gctx)
		}
		return s.cache.CacheAside(gctx, cache.ReactionCountsKey(target), &counts, cache.ReactionCountsTTL, fetch)
	})
	if callerID != 0 {
		g.Go(func() error {
			kinds, err := s.reactionRepo.KindsByUser(gctx, target, callerID)
			if err != nil {
				return err
			}
			if kinds != nil {
				mine = kinds
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if counts == nil {
		counts = map[models.ReactionKind]int64{}
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return &models.ReactionSummary{Counts: counts, UserReactions: mine, Total: total}, nil
}
