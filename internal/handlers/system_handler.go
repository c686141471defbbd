package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// SystemHandler serves health, metrics and the API document.
type SystemHandler struct {
	checks map[string]HealthCheck
	doc    *openapi3.T
}

func NewSystemHandler(checks map[string]HealthCheck, doc *openapi3.T) *SystemHandler {
	return &SystemHandler{checks: checks, doc: doc}
}

func (h *SystemHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/docs/openapi.json", h.OpenAPI)
}

func (h *SystemHandler) HealthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := fiber.StatusOK
	results := fiber.Map{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = fiber.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	state := "healthy"
	if status != fiber.StatusOK {
		state = "unhealthy"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":    state,
		"checks":    results,
		"timestamp": time.Now().Unix(),
	})
}

func (h *SystemHandler) OpenAPI(c fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.doc)
}
