package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/ivaspavlo/staff-management-system/internal/middleware"
	"github.com/ivaspavlo/staff-management-system/internal/services"
)

type ConstantsHandler struct {
	constantsService *services.ConstantsService
	policies         *middleware.Policies
}

func NewConstantsHandler(constantsService *services.ConstantsService, policies *middleware.Policies) *ConstantsHandler {
	return &ConstantsHandler{constantsService: constantsService, policies: policies}
}

func (h *ConstantsHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/constants", middleware.Require(h.policies.IsAuth), h.Get)
}

// Get resolves the constants named by one or more get parameters.
func (h *ConstantsHandler) Get(c fiber.Ctx) error {
	q := middleware.Query(c)
	filter, _ := q["filter"].(map[string]any)

	out, err := h.constantsService.Get(c.Context(), names(q["get"]), filter)
	if err != nil {
		return err
	}
	return send(c, out)
}

func names(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}
