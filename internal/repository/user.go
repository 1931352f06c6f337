package repository

import (
	"context"
	"strings"

	"campusfeed/internal/database"
	"campusfeed/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	NameOf(ctx context.Context, id uint) (string, error)
	Stats(ctx context.Context, id uint) (*models.UserStats, error)
	MarkVerified(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: bindTx(r.db, tx)}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError("Email already registered", nil)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "User", email)
	}
	return &user, nil
}

func (r *userRepository) NameOf(ctx context.Context, id uint) (string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Limit(1).Pluck("name", &names).Error; err != nil {
		return "", models.NewInternalError(err)
	}
	if len(names) == 0 {
		return "", models.NewNotFoundError("User", id)
	}
	return names[0], nil
}

// Stats counts the visible posts and comments written by the user.
func (r *userRepository) Stats(ctx context.Context, id uint) (*models.UserStats, error) {
	var stats models.UserStats
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Post{}).Where("user_id = ? AND is_deleted = ?", id, false).Count(&stats.Posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := db.Model(&models.Comment{}).Where("user_id = ? AND is_deleted = ?", id, false).Count(&stats.Comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &stats, nil
}

func (r *userRepository) MarkVerified(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("verified", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}
