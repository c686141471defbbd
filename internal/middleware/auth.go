package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/models"
)

type localKey int

const (
	userKey localKey = iota
	sessionKey
	queryKey
)

// Authenticator resolves a session token into the signed in user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *models.Session, error)
}

// Session attaches the user behind the session cookie or bearer token to
// the request. Requests without a valid token pass through anonymously.
func Session(auth Authenticator, cookieName string, log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := c.Cookies(cookieName)
		if token == "" {
			token = BearerToken(c.Get(fiber.HeaderAuthorization))
		}
		if token == "" {
			return c.Next()
		}

		user, session, err := auth.Authenticate(c.Context(), token)
		if err != nil {
			log.Error("Failed to resolve session", zap.String("path", c.Path()), zap.Error(err))
			return err
		}
		if user != nil {
			c.Locals(userKey, user)
			c.Locals(sessionKey, session)
		}
		return c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// CurrentUser returns the signed in user or nil.
func CurrentUser(c fiber.Ctx) *models.User {
	u, _ := c.Locals(userKey).(*models.User)
	return u
}

// CurrentSession returns the session of the signed in user or nil.
func CurrentSession(c fiber.Ctx) *models.Session {
	s, _ := c.Locals(sessionKey).(*models.Session)
	return s
}
