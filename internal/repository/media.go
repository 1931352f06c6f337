package repository

import (
	"context"

	"campusfeed/internal/models"

	"gorm.io/gorm"
)

// MediaRepository stores attachment metadata. Blobs live in storage.
type MediaRepository interface {
	WithTx(tx *gorm.DB) MediaRepository
	Create(ctx context.Context, m *models.Media) error
	GetByID(ctx context.Context, id uint) (*models.Media, error)
	Delete(ctx context.Context, id uint) error
	DeleteByPost(ctx context.Context, postID uint) ([]models.Media, error)
}

type mediaRepository struct {
	db *gorm.DB
}

// NewMediaRepository creates a new MediaRepository
func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db}
}

func (r *mediaRepository) WithTx(tx *gorm.DB) MediaRepository {
	return &mediaRepository{db: bindTx(r.db, tx)}
}

func (r *mediaRepository) Create(ctx context.Context, m *models.Media) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *mediaRepository) GetByID(ctx context.Context, id uint) (*models.Media, error) {
	var m models.Media
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFoundOr(err, "Media", id)
	}
	return &m, nil
}

func (r *mediaRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Media{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Media", id)
	}
	return nil
}

// DeleteByPost removes the media rows of a post and returns them so the
// caller can release their blobs.
func (r *mediaRepository) DeleteByPost(ctx context.Context, postID uint) ([]models.Media, error) {
	var removed []models.Media
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Find(&removed).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Media{}).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return removed, nil
}
