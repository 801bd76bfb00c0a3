package server

import (
	"strings"

	"inkwell/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// tokenFromRequest reads the x-access-token header, then an Authorization bearer token.
func tokenFromRequest(c *fiber.Ctx) string {
	if token := strings.TrimSpace(c.Get("x-access-token")); token != "" {
		return token
	}
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// AuthRequired returns the authentication middleware. A missing token is a
// 401, a bad one a 400.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := s.authService.VerifyToken(tokenFromRequest(c))
		if err != nil {
			return s.respondError(c, err)
		}

		c.Locals("userID", userID)
		// Sync to UserContext for logging and downstream services
		c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))

		return c.Next()
	}
}
