package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/ivaspavlo/staff-management-system/internal/middleware"
	"github.com/ivaspavlo/staff-management-system/internal/services"
)

type ProfileHandler struct {
	profileService *services.ProfileService
	policies       *middleware.Policies
}

func NewProfileHandler(profileService *services.ProfileService, policies *middleware.Policies) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, policies: policies}
}

func (h *ProfileHandler) RegisterRoutes(app *fiber.App) {
	group := app.Group("/myProfile", middleware.Require(h.policies.IsAuth))
	group.Get("/", h.MyProfile)
	group.Get("/:_id", h.MyProfile)
}

func (h *ProfileHandler) MyProfile(c fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	profile, err := h.profileService.MyProfile(c.Context(), routeParams(c), user.ID)
	if err != nil {
		return err
	}
	return send(c, profile)
}
