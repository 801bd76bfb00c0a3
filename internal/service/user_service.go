package service

import (
	"context"
	"strings"

	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

type UpdateCredentialsInput struct {
	UserID      uint
	Username    string
	OldPassword string
	NewPassword string
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetUser returns the public view of a user.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetCached(ctx, id)
}

// GetAuthorName returns the username shown next to a post.
func (s *UserService) GetAuthorName(ctx context.Context, id uint) (string, error) {
	user, err := s.userRepo.GetCached(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

func (s *UserService) UpdateUsername(ctx context.Context, userID uint, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.NewValidationError("Username is required")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.Username = username
	return s.userRepo.Update(ctx, user)
}

// UpdateCredentials changes username and password after checking the old password.
func (s *UserService) UpdateCredentials(ctx context.Context, in UpdateCredentialsInput) error {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.OldPassword == "" || in.NewPassword == "" {
		return models.NewValidationError("Username, old password and new password are required")
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.Password, in.OldPassword) {
		return models.NewInvalidCredentialsError()
	}

	hashed, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return models.NewInternalError(err)
	}
	user.Username = username
	user.Password = hashed
	return s.userRepo.Update(ctx, user)
}
