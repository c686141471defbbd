package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/config"
	"github.com/ivaspavlo/staff-management-system/internal/models"
)

// Policy inspects a request and returns an error when it may not proceed.
type Policy func(c fiber.Ctx) error

// Policies holds the access checks of the API. Access levels are looked
// up for the service the request comes from, identified by its Origin.
type Policies struct {
	auth config.AuthConfig
}

func NewPolicies(auth config.AuthConfig) *Policies {
	return &Policies{auth: auth}
}

// Require runs checks in order and continues the chain when all pass.
func Require(checks ...Policy) fiber.Handler {
	return func(c fiber.Ctx) error {
		for _, check := range checks {
			if err := check(c); err != nil {
				return err
			}
		}
		return c.Next()
	}
}

// AnyOf passes when at least one check passes. The last error is returned
// otherwise.
func AnyOf(checks ...Policy) Policy {
	return func(c fiber.Ctx) error {
		var err error
		for _, check := range checks {
			if err = check(c); err == nil {
				return nil
			}
		}
		return err
	}
}

func (p *Policies) IsAuth(c fiber.Ctx) error {
	if CurrentUser(c) == nil {
		return apperrors.Unauthorized("Please login first!")
	}
	return nil
}

func (p *Policies) IsAdmin(c fiber.Ctx) error {
	return p.checkAccess(c, func(string) bool { return false })
}

func (p *Policies) CanCreate(c fiber.Ctx) error { return p.checkLevel(c, models.AccessCreate) }

func (p *Policies) CanUpdate(c fiber.Ctx) error { return p.checkLevel(c, models.AccessUpdate) }

func (p *Policies) CanDestroy(c fiber.Ctx) error { return p.checkLevel(c, models.AccessDestroy) }

func (p *Policies) CanWrite(c fiber.Ctx) error { return p.checkLevel(c, models.AccessWrite) }

// IsOwner passes when the :_id route parameter is the signed in user.
func (p *Policies) IsOwner(c fiber.Ctx) error {
	owner := false
	if u := CurrentUser(c); u != nil {
		owner = u.ID.Hex() == c.Params("_id")
	}
	return p.checkAccess(c, func(string) bool { return owner })
}

// RestrictPersonalInfo drops populate keys that reach personal info.
func (p *Policies) RestrictPersonalInfo(c fiber.Ctx) error {
	populate, ok := Query(c)["populate"].(map[string]any)
	if !ok {
		return nil
	}
	for key := range populate {
		if strings.Contains(key, "personalInfo") {
			delete(populate, key)
		}
	}
	return nil
}

func (p *Policies) checkLevel(c fiber.Ctx, level string) error {
	return p.checkAccess(c, func(access string) bool {
		if access == level {
			return true
		}
		switch level {
		case models.AccessCreate, models.AccessUpdate, models.AccessDestroy:
			return access == models.AccessWrite
		}
		return false
	})
}

// checkAccess passes admins of the calling service and anyone granted by
// the given rule.
func (p *Policies) checkAccess(c fiber.Ctx, granted func(access string) bool) error {
	user := CurrentUser(c)
	if user == nil {
		return apperrors.Unauthorized("Please login first!")
	}
	service, ok := p.auth.ServiceForOrigin(c.Get(fiber.HeaderOrigin))
	if !ok {
		return apperrors.Forbidden("You have no access for this service!")
	}
	access := user.AccessFor(service)
	if access == models.AccessAdmin || granted(access) {
		return nil
	}
	return apperrors.Forbidden("Your access level for this service is not sufficient!")
}
