// Package service holds the business rules between the HTTP handlers and the repositories.
package service

import (
	"context"
	"errors"
	"strings"

	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

type AuthService struct {
	userRepo repository.UserRepository
	tokens   *auth.TokenIssuer
}

type SignupInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token    string `json:"token"`
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

func NewAuthService(userRepo repository.UserRepository, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens}
}

// Signup creates an account. The email check is a lookup, not a constraint,
// so two concurrent signups with one email can both succeed.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email and password are required")
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewAlreadyExistsError("A user with that email already exists")
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:   username,
		Email:      email,
		Password:   hashed,
		LikedPosts: models.PostIDList{},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", email)
	}

	if !auth.CheckPassword(user.Password, in.Password) {
		return nil, models.NewInvalidCredentialsError()
	}

	return s.issue(user)
}

// VerifyToken resolves a bearer token to its user ID.
func (s *AuthService) VerifyToken(token string) (uint, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrMissingToken) {
			return 0, models.NewUnauthorizedError("Authorization required")
		}
		return 0, models.NewInvalidTokenError(err)
	}
	return userID, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		Admin:    user.Admin,
	}, nil
}
