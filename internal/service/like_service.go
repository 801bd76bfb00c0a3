package service

import (
	"context"
	"log/slog"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// LikeService manages the user likes post relationship.
// AddLike and RemoveLike keep list and counter consistent; the split
// operations exist for the legacy routes and can let them drift.
type LikeService struct {
	likeRepo repository.LikeRepository
	userRepo repository.UserRepository
}

func NewLikeService(likeRepo repository.LikeRepository, userRepo repository.UserRepository) *LikeService {
	return &LikeService{likeRepo: likeRepo, userRepo: userRepo}
}

// AddLike appends postID to the user's list and increments the post's count.
// Repeated calls append duplicates and keep counting.
func (s *LikeService) AddLike(ctx context.Context, userID, postID uint) (*models.LikeState, error) {
	state, err := s.likeRepo.AddLike(ctx, userID, postID)
	middleware.ObserveLike("add", err)
	return state, err
}

// RemoveLike drops the first occurrence of postID. Removing an absent entry is a no-op.
func (s *LikeService) RemoveLike(ctx context.Context, userID, postID uint) (*models.LikeState, error) {
	state, err := s.likeRepo.RemoveLike(ctx, userID, postID)
	middleware.ObserveLike("remove", err)
	return state, err
}

func (s *LikeService) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.HasLiked(postID), nil
}

// AppendLikedPost updates the user's list only.
func (s *LikeService) AppendLikedPost(ctx context.Context, userID, postID uint) (models.PostIDList, error) {
	liked, err := s.likeRepo.AppendLikedPost(ctx, userID, postID)
	middleware.ObserveLike("append", err)
	return liked, err
}

// RemoveLikedPost removes the first occurrence from the user's list only.
func (s *LikeService) RemoveLikedPost(ctx context.Context, userID, postID uint) (models.PostIDList, error) {
	liked, _, err := s.likeRepo.RemoveLikedPost(ctx, userID, postID)
	middleware.ObserveLike("unappend", err)
	return liked, err
}

// IncrementLikeCount updates the post's counter only.
func (s *LikeService) IncrementLikeCount(ctx context.Context, postID uint) (int, error) {
	count, err := s.likeRepo.AdjustLikeCount(ctx, postID, 1)
	middleware.ObserveLike("increment", err)
	return count, err
}

// DecrementLikeCount updates the post's counter only; it stops at zero.
func (s *LikeService) DecrementLikeCount(ctx context.Context, postID uint) (int, error) {
	count, err := s.likeRepo.AdjustLikeCount(ctx, postID, -1)
	middleware.ObserveLike("decrement", err)
	return count, err
}

// OnPostDeleted removes every reference to postID from every user's list and
// returns the number of users changed. Counters are not touched.
func (s *LikeService) OnPostDeleted(ctx context.Context, postID uint) (int, error) {
	n, err := s.likeRepo.RemovePostFromAllUsers(ctx, postID)
	middleware.ObserveLike("cleanup", err)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		middleware.Logger.InfoContext(ctx, "removed deleted post from liked lists",
			slog.Uint64("post_id", uint64(postID)),
			slog.Int("users", n),
		)
	}
	return n, nil
}
