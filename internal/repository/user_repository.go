package repository

import (
	"context"
	stderrors "errors"
	"time"

	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateRoles(ctx context.Context, id uuid.UUID, roles models.Roles) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		if stderrors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return errors.Conflict("Username or email already exists")
		}
		return errors.Wrap(result.Error, "failed to create user")
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "failed to get user by ID", "id = ?", id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "failed to get user by username", "username = ?", username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "failed to get user by email", "email = ?", email)
}

func (r *userRepository) first(ctx context.Context, failure string, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where(query, args...).First(&user)

	if result.Error != nil {
		if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(result.Error, failure)
	}

	return &user, nil
}

func (r *userRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check user existence")
	}
	return count > 0, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"nickname":   user.Nickname,
		"avatar_url": user.AvatarURL,
		"phone":      user.Phone,
		"updated_at": time.Now(),
	})

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update user")
	}

	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}

	return nil
}

func (r *userRepository) UpdateRoles(ctx context.Context, id uuid.UUID, roles models.Roles) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"roles":      roles,
		"updated_at": time.Now(),
	})

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update user roles")
	}

	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}

	return nil
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumn("last_login_at", at)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update last login")
	}
	return nil
}
