package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
)

// LatestLimit is the number of posts returned by LatestPosts.
const LatestLimit = 7

type PostService struct {
	postRepo repository.PostRepository
	store    storage.ObjectStore
}

// ImageUpload is an image received with a create or edit request. Its type is
// sniffed from the content, so no client-declared type is carried.
type ImageUpload struct {
	Body io.Reader
	Size int64
}

type CreatePostInput struct {
	UserID      uint
	Title       string
	Description string
	Body        string
	Image       *ImageUpload
}

type EditPostInput struct {
	RequesterID uint
	PostID      uint
	Title       string
	Description string
	Body        string
	// Image is nil when the picture is left as is
	Image *ImageUpload
}

func NewPostService(postRepo repository.PostRepository, store storage.ObjectStore) *PostService {
	return &PostService{postRepo: postRepo, store: store}
}

func validateContent(title, description, body string) error {
	switch {
	case strings.TrimSpace(title) == "":
		return models.NewValidationError("Title is required")
	case strings.TrimSpace(description) == "":
		return models.NewValidationError("Description is required")
	case strings.TrimSpace(body) == "":
		return models.NewValidationError("Body is required")
	}
	return nil
}

// sniffLen is how much of an upload http.DetectContentType looks at.
const sniffLen = 512

func isAllowedImageMIME(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// sniffImage detects the type of body from its first bytes and returns a
// reader that still yields the whole content.
func sniffImage(body io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, models.NewValidationError("Unable to read uploaded file")
	}
	if n == 0 {
		return "", nil, models.NewValidationError("Image is required")
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !isAllowedImageMIME(contentType) {
		return "", nil, models.NewValidationError("Invalid image type")
	}
	return contentType, io.MultiReader(bytes.NewReader(head), body), nil
}

func (s *PostService) upload(ctx context.Context, img *ImageUpload) (string, error) {
	contentType, body, err := sniffImage(img.Body)
	if err != nil {
		return "", err
	}

	key := storage.NewKey()
	if err := s.store.Put(ctx, key, body, img.Size, contentType); err != nil {
		return "", models.NewUpstreamError("image upload", err)
	}
	return key, nil
}

// removeImage deletes key and only logs a failure.
func (s *PostService) removeImage(ctx context.Context, key string, postID uint) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to delete post image",
			slog.Uint64("post_id", uint64(postID)),
			slog.String("image_key", key),
			slog.String("error", err.Error()),
		)
	}
}

// CreatePost uploads the image, then saves the post. When the save fails the
// uploaded object is left behind and logged.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.BlogPost, error) {
	if err := validateContent(in.Title, in.Description, in.Body); err != nil {
		return nil, err
	}
	if in.Image == nil || in.Image.Body == nil {
		return nil, models.NewValidationError("Image is required")
	}

	key, err := s.upload(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	post := &models.BlogPost{
		Title:       in.Title,
		Description: in.Description,
		Body:        in.Body,
		ImageKey:    key,
		UserID:      in.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		middleware.Logger.WarnContext(ctx, "post save failed after image upload, image orphaned",
			slog.String("image_key", key),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return post, nil
}

func (s *PostService) ListPosts(ctx context.Context) ([]models.BlogPost, error) {
	return s.postRepo.List(ctx)
}

// LatestPosts returns the newest LatestLimit posts, oldest first.
func (s *PostService) LatestPosts(ctx context.Context) ([]models.BlogPost, error) {
	return s.postRepo.Latest(ctx, LatestLimit)
}

func (s *PostService) GetPostInfo(ctx context.Context, postID uint) (*models.BlogPost, error) {
	return s.postRepo.GetCached(ctx, postID)
}

// GetPostImage opens the post's image. The caller closes Body.
func (s *PostService) GetPostImage(ctx context.Context, postID uint) (*storage.Object, error) {
	post, err := s.postRepo.GetCached(ctx, postID)
	if err != nil {
		return nil, err
	}

	obj, err := s.store.Get(ctx, post.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, models.NewNotFoundError("Image", post.ImageKey)
		}
		return nil, models.NewUpstreamError("image download", err)
	}
	return obj, nil
}

// ownedPost loads postID and checks requesterID owns it.
func (s *PostService) ownedPost(ctx context.Context, requesterID, postID uint) (*models.BlogPost, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsOwnedBy(requesterID) {
		return nil, models.NewUnauthorizedError("Only the author can change this post")
	}
	return post, nil
}

// EditPost replaces the title, description and body, and the image when one is given.
// The old image is deleted only after the post points at the new one.
func (s *PostService) EditPost(ctx context.Context, in EditPostInput) (*models.BlogPost, error) {
	post, err := s.ownedPost(ctx, in.RequesterID, in.PostID)
	if err != nil {
		return nil, err
	}
	if err := validateContent(in.Title, in.Description, in.Body); err != nil {
		return nil, err
	}

	oldKey := ""
	if in.Image != nil {
		if in.Image.Body == nil {
			return nil, models.NewValidationError("Image is required")
		}
		newKey, err := s.upload(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		oldKey, post.ImageKey = post.ImageKey, newKey
	}

	post.Title = in.Title
	post.Description = in.Description
	post.Body = in.Body
	if err := s.postRepo.UpdateContent(ctx, post); err != nil {
		return nil, err
	}

	s.removeImage(ctx, oldKey, post.ID)
	return post, nil
}

// DeletePost removes the image (best effort) and the post record.
// Liked lists are cleaned separately through LikeService.OnPostDeleted.
func (s *PostService) DeletePost(ctx context.Context, requesterID, postID uint) (*models.BlogPost, error) {
	post, err := s.ownedPost(ctx, requesterID, postID)
	if err != nil {
		return nil, err
	}

	s.removeImage(ctx, post.ImageKey, post.ID)

	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) ListPostsByUser(ctx context.Context, userID uint) ([]models.BlogPost, error) {
	return s.postRepo.ListByUser(ctx, userID)
}
