// Package handler contains the fiber HTTP handlers: the OTLP ingest
// endpoints and the analytics query surface.
package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/middleware"
	apperrors "github.com/agentscope/agentscope/internal/pkg/errors"
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorResponse creates a standardized JSON error response.
func errorResponse(c *fiber.Ctx, statusCode int, message string) error {
	errorName := "Error"
	switch statusCode {
	case fiber.StatusBadRequest:
		errorName = "Bad Request"
	case fiber.StatusUnauthorized:
		errorName = "Unauthorized"
	case fiber.StatusNotFound:
		errorName = "Not Found"
	case fiber.StatusConflict:
		errorName = "Conflict"
	case fiber.StatusInternalServerError:
		errorName = "Internal Server Error"
	}

	return c.Status(statusCode).JSON(ErrorResponse{
		Error:   errorName,
		Message: message,
	})
}

// serviceError maps an application error to its HTTP response.
func serviceError(c *fiber.Ctx, err error) error {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return errorResponse(c, appErr.StatusCode, appErr.Message)
	}
	return errorResponse(c, fiber.StatusInternalServerError, "An unexpected error occurred")
}

// RequireQueryContext extracts the caller scope attached by the scope
// middleware. Sends an unauthorized response and returns false on failure.
func RequireQueryContext(c *fiber.Ctx) (domain.QueryContext, bool) {
	q, ok := middleware.GetQueryContext(c)
	if !ok {
		_ = errorResponse(c, fiber.StatusUnauthorized, "User ID not found")
	}
	return q, ok
}

// RequireIngestionContext extracts the ingest scope attached by the scope
// middleware. Sends an unauthorized response and returns false on failure.
func RequireIngestionContext(c *fiber.Ctx) (domain.IngestionContext, bool) {
	ictx, ok := middleware.GetIngestionContext(c)
	if !ok {
		_ = errorResponse(c, fiber.StatusUnauthorized, "Ingestion scope not found")
	}
	return ictx, ok
}

// parseQueryInt parses an integer query parameter with a default value.
func parseQueryInt(c *fiber.Ctx, key string, defaultValue int) int {
	val := c.Query(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// parseQueryFloat parses a float query parameter.
// Returns nil if the parameter is empty or invalid.
func parseQueryFloat(c *fiber.Ctx, key string) *float64 {
	val := c.Query(key)
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil
	}
	return &f
}
