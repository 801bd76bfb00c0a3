package repository

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// GetByID reads the full record, password hash included.
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// GetCached reads the public view of a user through the cache.
	GetCached(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB, c *cache.Cache) UserRepository {
	return &userRepository{db: db, cache: c}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, mapError(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetCached(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return mapError(r.db.WithContext(ctx).First(&user, id).Error, "User", id)
	})
	if err != nil {
		return nil, err
	}
	// a cache hit never has the hash, so a miss must not either
	user.Password = ""
	if user.LikedPosts == nil {
		user.LikedPosts = models.PostIDList{}
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no user has the email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).Order("id").First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, mapError(err, "User", email)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return mapError(err, "User", user.Email)
	}
	return nil
}

// Update saves the profile columns of user and drops its cache entry.
// The liked list is only written through LikeRepository.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(user).
		Select("username", "email", "password", "admin", "updated_at").
		Updates(user)
	if result.Error != nil {
		return mapError(result.Error, "User", user.ID)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("User", user.ID)
	}
	r.cache.InvalidateUser(ctx, user.ID)
	return nil
}
