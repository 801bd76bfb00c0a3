package repository

import (
	"context"
	"slices"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines persistence operations for blog posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.BlogPost) error
	GetByID(ctx context.Context, id uint) (*models.BlogPost, error)
	GetCached(ctx context.Context, id uint) (*models.BlogPost, error)
	List(ctx context.Context) ([]models.BlogPost, error)
	Latest(ctx context.Context, limit int) ([]models.BlogPost, error)
	ListByUser(ctx context.Context, userID uint) ([]models.BlogPost, error)
	UpdateContent(ctx context.Context, post *models.BlogPost) error
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB, c *cache.Cache) PostRepository {
	return &postRepository{db: db, cache: c}
}

func (r *postRepository) Create(ctx context.Context, post *models.BlogPost) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return mapError(err, "BlogPost", post.Title)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.BlogPost, error) {
	var post models.BlogPost
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, mapError(err, "BlogPost", id)
	}
	return &post, nil
}

func (r *postRepository) GetCached(ctx context.Context, id uint) (*models.BlogPost, error) {
	var post models.BlogPost
	err := r.cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		return mapError(r.db.WithContext(ctx).First(&post, id).Error, "BlogPost", id)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// List returns every post in insertion order.
func (r *postRepository) List(ctx context.Context) ([]models.BlogPost, error) {
	posts := []models.BlogPost{}
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&posts).Error; err != nil {
		return nil, mapError(err, "BlogPost", "*")
	}
	return posts, nil
}

// Latest returns the newest limit posts, oldest first.
func (r *postRepository) Latest(ctx context.Context, limit int) ([]models.BlogPost, error) {
	posts := []models.BlogPost{}
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&posts).Error; err != nil {
		return nil, mapError(err, "BlogPost", "latest")
	}
	slices.Reverse(posts)
	return posts, nil
}

func (r *postRepository) ListByUser(ctx context.Context, userID uint) ([]models.BlogPost, error) {
	posts := []models.BlogPost{}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&posts).Error; err != nil {
		return nil, mapError(err, "BlogPost", userID)
	}
	return posts, nil
}

// UpdateContent writes the editable columns only, so a concurrent like count change survives.
func (r *postRepository) UpdateContent(ctx context.Context, post *models.BlogPost) error {
	post.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(post).
		Select("title", "description", "body", "image_key", "updated_at").
		Updates(post)
	if result.Error != nil {
		return mapError(result.Error, "BlogPost", post.ID)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("BlogPost", post.ID)
	}
	r.cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.BlogPost{}, id)
	if result.Error != nil {
		return mapError(result.Error, "BlogPost", id)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("BlogPost", id)
	}
	r.cache.InvalidatePost(ctx, id)
	return nil
}
