package server

import (
	"log/slog"
	"mime/multipart"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// formImage opens the multipart "file" field. A missing field yields a nil upload.
func formImage(c *fiber.Ctx) (*service.ImageUpload, multipart.File, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, models.NewValidationError("Unable to read uploaded file")
	}
	return &service.ImageUpload{Body: f, Size: fh.Size}, f, nil
}

// CreatePost handles POST /blogposts/create
func (s *Server) CreatePost(c *fiber.Ctx) error {
	img, f, err := formImage(c)
	if err != nil {
		return s.respondError(c, err)
	}
	if f != nil {
		defer func() { _ = f.Close() }()
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:      currentUserID(c),
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Body:        c.FormValue("body"),
		Image:       img,
	})
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": post.ID})
}

// ListPosts handles GET /blogposts
func (s *Server) ListPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// LatestPosts handles GET /blogposts/latest
func (s *Server) LatestPosts(c *fiber.Ctx) error {
	posts, err := s.postService.LatestPosts(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// MyPosts handles GET /blogposts/myposts
func (s *Server) MyPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPostsByUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPostInfo handles GET /blogposts/info/:id
func (s *Server) GetPostInfo(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPostInfo(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// GetPostImage handles GET /blogposts/image/:id
func (s *Server) GetPostImage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	obj, err := s.postService.GetPostImage(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, obj.ContentType)
	// fasthttp closes the body once it has been sent
	if obj.Size >= 0 {
		return c.SendStream(obj.Body, int(obj.Size))
	}
	return c.SendStream(obj.Body)
}

// IncrementLikeCount handles POST /blogposts/addlike/:id
func (s *Server) IncrementLikeCount(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	count, err := s.likeService.IncrementLikeCount(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"likeCount": count})
}

// DecrementLikeCount handles PUT /blogposts/removelike/:id
func (s *Server) DecrementLikeCount(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	count, err := s.likeService.DecrementLikeCount(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"likeCount": count})
}

// LikePost handles POST /blogposts/like/:id
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	state, err := s.likeService.AddLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(state)
}

// UnlikePost handles DELETE /blogposts/like/:id
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	state, err := s.likeService.RemoveLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(state)
}

type editPostRequest struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	Body        string `json:"body" form:"body"`
}

// EditPost handles PUT /blogposts/edit/nopic/:id
func (s *Server) EditPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req editPostRequest
	if err := c.BodyParser(&req); err != nil {
		return s.invalidBody(c)
	}

	_, err = s.postService.EditPost(c.UserContext(), service.EditPostInput{
		RequesterID: currentUserID(c),
		PostID:      id,
		Title:       req.Title,
		Description: req.Description,
		Body:        req.Body,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// EditPostWithImage handles PUT /blogposts/edit/yespic/:id
func (s *Server) EditPostWithImage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	img, f, err := formImage(c)
	if err != nil {
		return s.respondError(c, err)
	}
	if f == nil {
		return s.respondError(c, models.NewValidationError("Image is required"))
	}
	defer func() { _ = f.Close() }()

	_, err = s.postService.EditPost(c.UserContext(), service.EditPostInput{
		RequesterID: currentUserID(c),
		PostID:      id,
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Body:        c.FormValue("body"),
		Image:       img,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeletePost handles DELETE /blogposts/delete/:id. The post is already gone
// when the liked-list cleanup runs, so a cleanup failure is only logged.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ctx := c.UserContext()
	post, err := s.postService.DeletePost(ctx, currentUserID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}

	if _, err := s.likeService.OnPostDeleted(ctx, post.ID); err != nil {
		middleware.Logger.WarnContext(ctx, "liked-list cleanup failed after post delete",
			slog.Uint64("post_id", uint64(post.ID)),
			slog.String("error", err.Error()),
		)
	}

	return c.JSON(post)
}
