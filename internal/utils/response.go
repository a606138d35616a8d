package utils

import (
	"errors"
	"time"

	"github.com/assetops/assetcore/internal/types"
	"github.com/gofiber/fiber/v2"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends a standard error response
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":    fiber.StatusNotFound,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
	})
}

// DomainErrorResponse maps a service error onto the HTTP taxonomy and
// sends it. Handlers funnel every service failure through here so the
// mapping stays in one place.
func DomainErrorResponse(c *fiber.Ctx, err error, errorType string) error {
	return ErrorResponse(c, err.Error(), StatusForError(err), errorType)
}

// StatusForError resolves the HTTP status for a domain error.
func StatusForError(err error) int {
	var formatErr *types.FormatError
	switch {
	case errors.As(err, &formatErr):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, types.ErrRuleNotFound),
		errors.Is(err, types.ErrFlowNotFound),
		errors.Is(err, types.ErrFormNotFound),
		errors.Is(err, types.ErrFlowNotBound):
		return fiber.StatusNotFound
	case errors.Is(err, types.ErrAllocationConflict),
		errors.Is(err, types.ErrDuplicateNumber),
		errors.Is(err, types.ErrDuplicateDecision),
		errors.Is(err, types.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, types.ErrUnauthorized):
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Ok        bool   `json:"ok"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
	Type      string `json:"type,omitempty"`
}

// MutationSuccessStruct defines the schema for mutation success responses
type MutationSuccessStruct struct {
	Message   string      `json:"message"`
	Ok        bool        `json:"ok"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// MutationSuccessResponse sends a success response for mutations (POST/DELETE)
func MutationSuccessResponse(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":   message,
		"ok":        true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	})
}
