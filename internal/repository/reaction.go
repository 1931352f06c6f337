package repository

import (
	"context"

	"campusfeed/internal/database"
	"campusfeed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionRepository stores the reaction ledger.
type ReactionRepository interface {
	WithTx(tx *gorm.DB) ReactionRepository
	Insert(ctx context.Context, reaction *models.Reaction) (bool, error)
	Delete(ctx context.Context, target models.ReactionTarget, userID uint, kind models.ReactionKind) (int64, error)
	CountsByTarget(ctx context.Context, target models.ReactionTarget) (map[models.ReactionKind]int64, error)
	KindsByUser(ctx context.Context, target models.ReactionTarget, userID uint) ([]models.ReactionKind, error)
	DeleteByTarget(ctx context.Context, target models.ReactionTarget) (int64, error)
	DeleteByPostComments(ctx context.Context, postID uint) (int64, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository creates a new ReactionRepository
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) WithTx(tx *gorm.DB) ReactionRepository {
	return &reactionRepository{db: bindTx(r.db, tx)}
}

// Insert adds the reaction unless an identical one exists and reports
// whether a row was written.
func (r *reactionRepository) Insert(ctx context.Context, reaction *models.Reaction) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(reaction)
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return false, models.NewConflictError("Reaction already exists", res.Error)
		}
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *reactionRepository) Delete(ctx context.Context, target models.ReactionTarget, userID uint, kind models.ReactionKind) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND user_id = ? AND kind = ?", target.Type, target.ID, userID, kind).
		Delete(&models.Reaction{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

type kindCount struct {
	Kind  models.ReactionKind
	Count int64
}

func (r *reactionRepository) CountsByTarget(ctx context.Context, target models.ReactionTarget) (map[models.ReactionKind]int64, error) {
	var rows []kindCount
	err := r.db.WithContext(ctx).Model(&models.Reaction{}).
		Select("kind, COUNT(*) AS count").
		Where("target_type = ? AND target_id = ?", target.Type, target.ID).
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	counts := make(map[models.ReactionKind]int64, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row.Count
	}
	return counts, nil
}

func (r *reactionRepository) KindsByUser(ctx context.Context, target models.ReactionTarget, userID uint) ([]models.ReactionKind, error) {
	var kinds []models.ReactionKind
	err := r.db.WithContext(ctx).Model(&models.Reaction{}).
		Where("target_type = ? AND target_id = ? AND user_id = ?", target.Type, target.ID, userID).
		Order("kind ASC").
		Pluck("kind", &kinds).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return kinds, nil
}

func (r *reactionRepository) DeleteByTarget(ctx context.Context, target models.ReactionTarget) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", target.Type, target.ID).
		Delete(&models.Reaction{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByPostComments removes reactions on every comment of the post.
func (r *reactionRepository) DeleteByPostComments(ctx context.Context, postID uint) (int64, error) {
	commentIDs := r.db.Model(&models.Comment{}).Select("id").Where("post_id = ?", postID)
	res := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id IN (?)", models.TargetComment, commentIDs).
		Delete(&models.Reaction{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
