package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /users/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username" form:"username"`
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.invalidBody(c)
	}

	res, err := s.authService.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

// Login handles POST /users/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.invalidBody(c)
	}

	res, err := s.authService.Login(c.UserContext(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(res)
}

// LoggedIn handles GET /users/loggedin
func (s *Server) LoggedIn(c *fiber.Ctx) error {
	if _, err := s.authService.VerifyToken(tokenFromRequest(c)); err != nil {
		return c.Status(mapServiceError(err)).JSON(fiber.Map{"loggedIn": false})
	}
	return c.JSON(fiber.Map{"loggedIn": true})
}

// GetAccount handles GET /users/account
func (s *Server) GetAccount(c *fiber.Ctx) error {
	user, err := s.userService.GetUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateUsername handles PUT /users/update/username
func (s *Server) UpdateUsername(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username" form:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.invalidBody(c)
	}

	if err := s.userService.UpdateUsername(c.UserContext(), currentUserID(c), req.Username); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// UpdateCredentials handles PUT /users/update/all
func (s *Server) UpdateCredentials(c *fiber.Ctx) error {
	var req struct {
		Username    string `json:"username" form:"username"`
		OldPassword string `json:"oldPassword" form:"oldPassword"`
		NewPassword string `json:"newPassword" form:"newPassword"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.invalidBody(c)
	}

	err := s.userService.UpdateCredentials(c.UserContext(), service.UpdateCredentialsInput{
		UserID:      currentUserID(c),
		Username:    req.Username,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetAuthorName handles GET /users/username/:id
func (s *Server) GetAuthorName(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	name, err := s.userService.GetAuthorName(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"author": name})
}

// GetLikedPost handles GET /users/likedposts/:userId/:blogPostId
func (s *Server) GetLikedPost(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	postID, err := s.parseID(c, "blogPostId")
	if err != nil {
		return nil
	}

	liked, err := s.likeService.IsLiked(c.UserContext(), userID, postID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"likedPost": liked})
}

// AppendLikedPost handles POST /users/addlike/:userId/:blogPostId
func (s *Server) AppendLikedPost(c *fiber.Ctx) error {
	userID, err := s.requireSelf(c, "userId")
	if err != nil {
		return nil
	}
	postID, err := s.parseID(c, "blogPostId")
	if err != nil {
		return nil
	}

	liked, err := s.likeService.AppendLikedPost(c.UserContext(), userID, postID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"likedPosts": liked})
}

// RemoveLikedPost handles PUT /users/removelike/:userId/:blogPostId
func (s *Server) RemoveLikedPost(c *fiber.Ctx) error {
	userID, err := s.requireSelf(c, "userId")
	if err != nil {
		return nil
	}
	postID, err := s.parseID(c, "blogPostId")
	if err != nil {
		return nil
	}

	liked, err := s.likeService.RemoveLikedPost(c.UserContext(), userID, postID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"likedPosts": liked})
}

// RemoveDeletedPostLikes handles PUT /users/deletedpost/removelike/:id
func (s *Server) RemoveDeletedPostLikes(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	n, err := s.likeService.OnPostDeleted(c.UserContext(), postID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}

// GetUser handles GET /users/:id
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(userResponse(user))
}

// userResponse is the public view of a user; the email stays private to its owner.
func userResponse(u *models.User) fiber.Map {
	return fiber.Map{
		"id":         u.ID,
		"username":   u.Username,
		"admin":      u.Admin,
		"likedPosts": u.LikedPosts,
		"createdAt":  u.CreatedAt,
	}
}
