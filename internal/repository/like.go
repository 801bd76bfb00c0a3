package repository

import (
	"context"
	"strconv"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// LikeRepository keeps users' liked lists and posts' like counters in step.
type LikeRepository interface {
	// AddLike appends postID to the user's list and bumps the counter in one transaction.
	AddLike(ctx context.Context, userID, postID uint) (*models.LikeState, error)
	// RemoveLike drops the first occurrence of postID and decrements the counter
	// only when an entry was removed.
	RemoveLike(ctx context.Context, userID, postID uint) (*models.LikeState, error)
	AppendLikedPost(ctx context.Context, userID, postID uint) (models.PostIDList, error)
	RemoveLikedPost(ctx context.Context, userID, postID uint) (models.PostIDList, bool, error)
	// AdjustLikeCount adds delta to the counter, never going below zero.
	AdjustLikeCount(ctx context.Context, postID uint, delta int) (int, error)
	// RemovePostFromAllUsers strips every occurrence of postID from every list.
	RemovePostFromAllUsers(ctx context.Context, postID uint) (int, error)
}

type likeRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewLikeRepository returns a new LikeRepository implementation.
func NewLikeRepository(db *gorm.DB, c *cache.Cache) LikeRepository {
	return &likeRepository{db: db, cache: c}
}

func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	if err := forUpdate(tx).First(&user, userID).Error; err != nil {
		return nil, mapError(err, "User", userID)
	}
	return &user, nil
}

func lockPost(tx *gorm.DB, postID uint) (*models.BlogPost, error) {
	var post models.BlogPost
	if err := forUpdate(tx).First(&post, postID).Error; err != nil {
		return nil, mapError(err, "BlogPost", postID)
	}
	return &post, nil
}

func saveLikedPosts(tx *gorm.DB, user *models.User) error {
	err := tx.Model(user).Update("liked_posts", user.LikedPosts).Error
	return mapError(err, "User", user.ID)
}

func bumpLikeCount(tx *gorm.DB, postID uint, delta int) error {
	err := tx.Model(&models.BlogPost{}).
		Where("id = ?", postID).
		UpdateColumn("like_count", gorm.Expr("like_count + ?", delta)).Error
	return mapError(err, "BlogPost", postID)
}

func (r *likeRepository) AddLike(ctx context.Context, userID, postID uint) (*models.LikeState, error) {
	state := &models.LikeState{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		post, err := lockPost(tx, postID)
		if err != nil {
			return err
		}

		user.LikedPosts = append(user.LikedPosts, postID)
		if err := saveLikedPosts(tx, user); err != nil {
			return err
		}
		if err := bumpLikeCount(tx, postID, 1); err != nil {
			return err
		}

		state.Liked = true
		state.LikeCount = post.LikeCount + 1
		state.LikedPosts = user.LikedPosts
		return nil
	})
	if err != nil {
		return nil, mapError(err, "BlogPost", postID)
	}

	r.cache.InvalidateUser(ctx, userID)
	r.cache.InvalidatePost(ctx, postID)
	return state, nil
}

func (r *likeRepository) RemoveLike(ctx context.Context, userID, postID uint) (*models.LikeState, error) {
	state := &models.LikeState{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		post, err := lockPost(tx, postID)
		if err != nil {
			return err
		}

		state.LikeCount = post.LikeCount
		if user.LikedPosts.RemoveFirst(postID) {
			if err := saveLikedPosts(tx, user); err != nil {
				return err
			}
			if err := bumpLikeCount(tx, postID, -1); err != nil {
				return err
			}
			state.LikeCount--
		}

		state.Liked = user.LikedPosts.Contains(postID)
		state.LikedPosts = user.LikedPosts
		return nil
	})
	if err != nil {
		return nil, mapError(err, "BlogPost", postID)
	}

	r.cache.InvalidateUser(ctx, userID)
	r.cache.InvalidatePost(ctx, postID)
	return state, nil
}

func (r *likeRepository) AppendLikedPost(ctx context.Context, userID, postID uint) (models.PostIDList, error) {
	var liked models.PostIDList
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		user.LikedPosts = append(user.LikedPosts, postID)
		liked = user.LikedPosts
		return saveLikedPosts(tx, user)
	})
	if err != nil {
		return nil, mapError(err, "User", userID)
	}
	r.cache.InvalidateUser(ctx, userID)
	return liked, nil
}

func (r *likeRepository) RemoveLikedPost(ctx context.Context, userID, postID uint) (models.PostIDList, bool, error) {
	var (
		liked   models.PostIDList
		removed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		removed = user.LikedPosts.RemoveFirst(postID)
		liked = user.LikedPosts
		if !removed {
			return nil
		}
		return saveLikedPosts(tx, user)
	})
	if err != nil {
		return nil, false, mapError(err, "User", userID)
	}
	if removed {
		r.cache.InvalidateUser(ctx, userID)
	}
	return liked, removed, nil
}

func (r *likeRepository) AdjustLikeCount(ctx context.Context, postID uint, delta int) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.BlogPost{}).
			Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("CASE WHEN like_count + ? < 0 THEN 0 ELSE like_count + ? END", delta, delta))
		if result.Error != nil {
			return mapError(result.Error, "BlogPost", postID)
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("BlogPost", postID)
		}

		var post models.BlogPost
		if err := tx.Select("id", "like_count").First(&post, postID).Error; err != nil {
			return mapError(err, "BlogPost", postID)
		}
		count = post.LikeCount
		return nil
	})
	if err != nil {
		return 0, mapError(err, "BlogPost", postID)
	}
	r.cache.InvalidatePost(ctx, postID)
	return count, nil
}

// RemovePostFromAllUsers narrows candidates with a LIKE on the JSON text and
// confirms membership on the decoded list, since "%1%" also matches 12.
func (r *likeRepository) RemovePostFromAllUsers(ctx context.Context, postID uint) (int, error) {
	var touched []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []models.User
		pattern := "%" + strconv.FormatUint(uint64(postID), 10) + "%"
		if err := forUpdate(tx).Where("liked_posts LIKE ?", pattern).Order("id").Find(&candidates).Error; err != nil {
			return mapError(err, "User", "liked_posts")
		}

		for i := range candidates {
			user := &candidates[i]
			if user.LikedPosts.RemoveAll(postID) == 0 {
				continue
			}
			if err := saveLikedPosts(tx, user); err != nil {
				return err
			}
			touched = append(touched, user.ID)
		}
		return nil
	})
	if err != nil {
		return 0, mapError(err, "User", "liked_posts")
	}

	for _, id := range touched {
		r.cache.InvalidateUser(ctx, id)
	}
	return len(touched), nil
}
