package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/echo-go-api/internal/models"
)

// UserRepository reads display profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	CountExisting(ctx context.Context, ids []uint) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a GORM-backed user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) CountExisting(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
