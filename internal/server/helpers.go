package server

import (
	"errors"
	"strings"
	"unicode"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// mapServiceError returns the HTTP status for an error returned by a service.
func mapServiceError(err error) int {
	return models.StatusFor(err)
}

// respondError writes err with the status its code implies. Wrapped causes
// are left out of the body in production.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	if s.config.IsProduction() {
		return models.RespondWithErrorRedacted(c, status, err)
	}
	return models.RespondWithError(c, status, err)
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "blogPostId" -> "blog post ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// currentUserID returns the user set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// requireSelf parses param and checks it names the authenticated user.
// On failure it writes the response and returns errResponseWritten.
func (s *Server) requireSelf(c *fiber.Ctx, param string) (uint, error) {
	id, err := s.parseID(c, param)
	if err != nil {
		return 0, err
	}
	if id != currentUserID(c) {
		_ = s.respondError(c, models.NewUnauthorizedError("You can only change your own likes"))
		return 0, errResponseWritten
	}
	return id, nil
}

// invalidBody writes the 400 returned for an unparsable request body.
func (s *Server) invalidBody(c *fiber.Ctx) error {
	return s.respondError(c, models.NewValidationError("Invalid request body"))
}
