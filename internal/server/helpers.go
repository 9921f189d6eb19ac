package server

import (
	"errors"

	"lanes/internal/middleware"
	"lanes/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// currentUserID returns the authenticated user set by the auth middleware.
func currentUserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid " + param,
		})
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// respondError maps the typed outcome taxonomy onto HTTP statuses and
// writes the response. Unrecognized errors are treated as internal.
func respondError(c *fiber.Ctx, err error) error {
	var (
		denied    *models.DeniedError
		rejected  *models.RejectedError
		notFound  *models.NotFoundError
		conflict  *models.ConflictError
		storeFail *models.StoreError
	)

	switch {
	case errors.As(err, &denied):
		status := fiber.StatusForbidden
		if denied.Reason == models.DenyRateLimited {
			status = fiber.StatusTooManyRequests
		}
		return c.Status(status).JSON(fiber.Map{
			"error":  denied.Message,
			"reason": string(denied.Reason),
		})
	case errors.As(err, &rejected):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  rejected.Message,
			"reason": string(rejected.Reason),
		})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": notFound.Error(),
		})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  conflict.Error(),
			"reason": string(conflict.Kind),
		})
	case errors.As(err, &storeFail):
		middleware.Logger.ErrorContext(c.Context(), "store failure", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "storage unavailable, retry later",
		})
	default:
		middleware.Logger.ErrorContext(c.Context(), "unhandled error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
}
