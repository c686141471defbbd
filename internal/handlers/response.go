package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/services"
)

// send writes data with status 200, or the status of a *services.Result.
func send(c fiber.Ctx, data any) error {
	if res, ok := data.(*services.Result); ok {
		status := res.StatusCode
		if status == 0 {
			status = fiber.StatusOK
		}
		if res.Data == nil && status == fiber.StatusNoContent {
			return c.SendStatus(status)
		}
		return c.Status(status).JSON(res.Data)
	}
	return c.Status(fiber.StatusOK).JSON(data)
}

func routeParams(c fiber.Ctx) map[string]any {
	params := make(map[string]any)
	if id := c.Params("_id"); id != "" {
		params["_id"] = id
	}
	return params
}

// jsonBody decodes the request body into a mapping. An empty body is an
// empty mapping.
func jsonBody(c fiber.Ctx) (map[string]any, error) {
	body := make(map[string]any)
	if len(c.Body()) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return nil, apperrors.NewValidation("Invalid request body")
	}
	return body, nil
}

// jsonList decodes a body holding either one object or a list of objects.
func jsonList(c fiber.Ctx) ([]any, error) {
	var raw any
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return nil, apperrors.NewValidation("Invalid request body")
	}
	switch t := raw.(type) {
	case []any:
		return t, nil
	case map[string]any:
		return []any{t}, nil
	}
	return nil, apperrors.NewValidation("Invalid request body")
}
