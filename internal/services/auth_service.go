package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/config"
	"github.com/ivaspavlo/staff-management-system/internal/models"
	"github.com/ivaspavlo/staff-management-system/internal/repository"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
	"github.com/ivaspavlo/staff-management-system/internal/validation"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUserInfo is the subset of the Google userinfo response used on login.
type GoogleUserInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Gender  string `json:"gender"`
	Picture string `json:"picture"`
	// HD is the hosted domain of a Google Workspace account.
	HD string `json:"hd"`
}

// IdentityProvider performs the OAuth login round trip.
type IdentityProvider interface {
	AuthCodeURL(local bool) string
	UserInfo(ctx context.Context, code string, local bool) (*GoogleUserInfo, error)
}

type SessionStore interface {
	Save(ctx context.Context, session *models.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Touch(ctx context.Context, session *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type GoogleOAuth struct {
	remote *oauth2.Config
	local  *oauth2.Config
}

func NewGoogleOAuth(cfg config.GoogleConfig) *GoogleOAuth {
	build := func(redirect string) *oauth2.Config {
		return &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirect,
			Scopes:       []string{"profile", "email"},
			Endpoint:     google.Endpoint,
		}
	}
	return &GoogleOAuth{remote: build(cfg.RedirectURL), local: build(cfg.LocalRedirectURL)}
}

func (g *GoogleOAuth) client(local bool) *oauth2.Config {
	if local {
		return g.local
	}
	return g.remote
}

func (g *GoogleOAuth) AuthCodeURL(local bool) string {
	return g.client(local).AuthCodeURL(uuid.NewString())
}

func (g *GoogleOAuth) UserInfo(ctx context.Context, code string, local bool) (*GoogleUserInfo, error) {
	conf := g.client(local)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	resp, err := conf.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	var info GoogleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return &info, nil
}

// LoginRequest carries the OAuth code and client details of a login.
type LoginRequest struct {
	Code        string
	IsLocalAuth string
	UserAgent   string
	IPAddress   string
}

// AuthService logs employees in with Google and keeps their sessions.
type AuthService struct {
	provider      IdentityProvider
	store         repository.Store
	registry      *schema.Registry
	sessions      SessionStore
	tokens        *TokenService
	validator     *validation.Validator
	companyDomain string
	sessionTTL    time.Duration
	log           *zap.Logger
	now           func() time.Time
}

func NewAuthService(deps Deps, provider IdentityProvider, sessions SessionStore, tokens *TokenService, companyDomain string, sessionTTL time.Duration) *AuthService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		provider:      provider,
		store:         deps.Store,
		registry:      deps.Registry,
		sessions:      sessions,
		tokens:        tokens,
		validator:     deps.Validator,
		companyDomain: companyDomain,
		sessionTTL:    sessionTTL,
		log:           deps.Log,
		now:           now,
	}
}

// LoginLink returns the Google consent URL. isLocalAuth "true" redirects
// back to the local front end.
func (s *AuthService) LoginLink(isLocalAuth string) (string, error) {
	if err := s.validator.Validate(validation.Check{
		Data:  map[string]any{"isLocalAuth": isLocalAuth},
		Rules: validation.Rules{"isLocalAuth": {"required", "string", "in:true,false"}},
	}); err != nil {
		return "", err
	}
	return s.provider.AuthCodeURL(isLocalAuth == "true"), nil
}

// Login exchanges the OAuth code, finds or creates the employee and opens
// a session. It returns the signed session token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (string, error) {
	if err := s.validator.Validate(validation.Check{
		Data: map[string]any{"code": req.Code, "isLocalAuth": req.IsLocalAuth},
		Rules: validation.Rules{
			"code":        {"required", "string"},
			"isLocalAuth": {"required", "string"},
		},
	}); err != nil {
		return "", err
	}

	info, err := s.provider.UserInfo(ctx, req.Code, req.IsLocalAuth == "true")
	if err != nil {
		s.log.Warn("google login failed", zap.Error(err))
		return "", apperrors.Unauthorized("Google login failed")
	}
	if info.HD != s.companyDomain {
		return "", apperrors.Forbidden(fmt.Sprintf("You should sign-in using your %s Gmail account", s.companyDomain))
	}

	employee, err := s.findOrCreateEmployee(ctx, info)
	if err != nil {
		return "", err
	}

	now := s.now()
	session := &models.Session{
		ID:             uuid.NewString(),
		EmployeeID:     employee.ID.Hex(),
		Email:          employee.Email,
		UserAgent:      req.UserAgent,
		IPAddress:      req.IPAddress,
		CreatedAt:      now.Unix(),
		LastActivityAt: now.Unix(),
	}
	if err := s.sessions.Save(ctx, session, s.sessionTTL); err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(session.ID, session.EmployeeID, now)
	if err != nil {
		return "", err
	}
	s.log.Info("employee logged in", zap.String("employeeId", session.EmployeeID))
	return token, nil
}

func (s *AuthService) findOrCreateEmployee(ctx context.Context, info *GoogleUserInfo) (*models.Employee, error) {
	doc, err := s.store.FindOne(ctx, schema.EntityEmployee, bson.M{"email": strings.ToLower(info.Email)})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		firstName, lastName, _ := strings.Cut(info.Name, " ")
		newDoc := bson.M{
			"email":     strings.ToLower(info.Email),
			"gender":    info.Gender,
			"firstName": firstName,
			"lastName":  lastName,
		}
		if e, ok := s.registry.Get(schema.EntityEmployee); ok {
			newDoc = e.Cast(newDoc)
			e.ApplyDefaults(newDoc)
		}
		doc, err = s.store.Create(ctx, schema.EntityEmployee, newDoc)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.Create(ctx, schema.EntityPersonalInfo, bson.M{"employee": doc["_id"]}); err != nil {
			return nil, err
		}
		s.log.Info("created employee on first login", zap.String("email", info.Email))
	}

	var employee models.Employee
	if err := decode(doc, &employee); err != nil {
		return nil, err
	}
	return &employee, nil
}

// Authenticate resolves a session token to the employee and its roles. It
// returns nil without error when the session is gone.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, *models.Session, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil, nil
	}
	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil || session == nil {
		return nil, nil, err
	}

	id, err := bson.ObjectIDFromHex(session.EmployeeID)
	if err != nil {
		return nil, nil, nil
	}
	doc, err := s.store.FindByID(ctx, schema.EntityEmployee, id, nil)
	if err != nil || doc == nil {
		return nil, nil, err
	}
	roles, err := s.store.Find(ctx, schema.EntityRole, bson.M{"employee": id}, repository.FindOptions{})
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{}
	if err := decode(doc, &user.Employee); err != nil {
		return nil, nil, err
	}
	for _, r := range roles {
		var role models.Role
		if err := decode(r, &role); err != nil {
			return nil, nil, err
		}
		user.Roles = append(user.Roles, role)
	}

	if err := s.sessions.Touch(ctx, session, s.sessionTTL); err != nil {
		s.log.Warn("failed to refresh session", zap.String("sessionId", session.ID), zap.Error(err))
	}
	return user, session, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}
