package middleware

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
)

// ErrorHandler renders every error returned by a handler or policy as
// {"error": <status text>, "messages": [...]}.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := apperrors.HTTPStatus(err)
		messages := apperrors.Messages(err)

		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			status = ferr.Code
			messages = []string{ferr.Message}
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("Request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return c.Status(status).JSON(fiber.Map{
			"error":    http.StatusText(status),
			"messages": messages,
		})
	}
}
