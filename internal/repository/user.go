package repository

import (
	"context"
	"errors"

	"lanes/internal/models"

	"gorm.io/gorm"
)

// UserRepository resolves user accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	ResolveUsernames(ctx context.Context, usernames []string) ([]*models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a gorm-backed UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, err
	}
	return &user, nil
}

// ResolveUsernames returns the users whose username matches one of the
// candidates. Unknown names are silently absent from the result.
func (r *userRepository) ResolveUsernames(ctx context.Context, usernames []string) ([]*models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	var users []*models.User
	err := r.db.WithContext(ctx).
		Where("username IN ?", usernames).
		Find(&users).Error
	return users, err
}
