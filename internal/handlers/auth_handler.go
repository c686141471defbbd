package handlers

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/middleware"
	"github.com/ivaspavlo/staff-management-system/internal/services"
)

var (
	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staff_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"status"},
	)

	logoutAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "staff_logout_attempts_total",
			Help: "Total number of logout attempts",
		},
	)
)

// CookieSettings describe the session cookie set on login.
type CookieSettings struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

type AuthHandler struct {
	authService *services.AuthService
	policies    *middleware.Policies
	cookie      CookieSettings
	log         *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, policies *middleware.Policies, cookie CookieSettings, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		policies:    policies,
		cookie:      cookie,
		log:         log,
	}
}

func (h *AuthHandler) RegisterRoutes(app *fiber.App) {
	authGroup := app.Group("/auth")

	authGroup.Get("/loginLink", h.LoginLink)
	authGroup.Post("/login", h.Login)
	authGroup.Get("/me", middleware.Require(h.policies.IsAuth), h.Me)
	authGroup.Get("/logout", middleware.Require(h.policies.IsAuth), h.Logout)
}

func (h *AuthHandler) LoginLink(c fiber.Ctx) error {
	url, err := h.authService.LoginLink(c.Query("isLocalAuth", "false"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"url": url})
}

func (h *AuthHandler) Login(c fiber.Ctx) error {
	var loginRequest struct {
		Code        string `json:"code"`
		IsLocalAuth string `json:"isLocalAuth"`
	}
	if err := c.Bind().Body(&loginRequest); err != nil {
		loginAttempts.WithLabelValues("failure").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    "Bad Request",
			"messages": []string{"Invalid request body"},
		})
	}

	token, err := h.authService.Login(c.Context(), services.LoginRequest{
		Code:        loginRequest.Code,
		IsLocalAuth: loginRequest.IsLocalAuth,
		UserAgent:   c.Get(fiber.HeaderUserAgent),
		IPAddress:   c.IP(),
	})
	if err != nil {
		loginAttempts.WithLabelValues("failure").Inc()
		return err
	}
	loginAttempts.WithLabelValues("success").Inc()

	c.Cookie(h.sessionCookie(token, time.Now().Add(h.cookie.TTL)))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) Me(c fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(middleware.CurrentUser(c))
}

func (h *AuthHandler) Logout(c fiber.Ctx) error {
	logoutAttempts.Inc()
	if session := middleware.CurrentSession(c); session != nil {
		if err := h.authService.Logout(c.Context(), session.ID); err != nil {
			h.log.Error("Failed to delete session", zap.String("session", session.ID), zap.Error(err))
			return err
		}
	}
	c.Cookie(h.sessionCookie("", time.Unix(0, 0)))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) sessionCookie(value string, expires time.Time) *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
	}
	if h.cookie.Secure {
		cookie.SameSite = "None"
		cookie.Secure = true
	} else {
		cookie.SameSite = "Lax"
	}
	return cookie
}
