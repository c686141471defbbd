package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/config"
)

const jiraProjectsPath = "/rest/api/2/project"

// JiraProject is one project as listed to the front end.
type JiraProject struct {
	ID       string  `json:"id"`
	Key      string  `json:"key"`
	Name     string  `json:"name"`
	Category *string `json:"category"`
}

type jiraProject struct {
	ID              string `json:"id"`
	Key             string `json:"key"`
	Name            string `json:"name"`
	ProjectCategory *struct {
		Name string `json:"name"`
	} `json:"projectCategory"`
}

// JiraService reads projects from the Jira REST API with basic auth.
type JiraService struct {
	cfg    config.JiraConfig
	client *http.Client
	log    *zap.Logger
}

func NewJiraService(cfg config.JiraConfig, log *zap.Logger) *JiraService {
	return &JiraService{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

func (s *JiraService) baseURL() string {
	host := strings.TrimRight(s.cfg.Host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

func (s *JiraService) Projects(ctx context.Context) ([]JiraProject, error) {
	if s.cfg.Host == "" {
		return nil, apperrors.NewValidation("Jira is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL()+jiraProjectsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build jira request: %w", err)
	}
	req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("jira request failed", zap.Error(err))
		return nil, fmt.Errorf("failed to reach jira: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewValidation(fmt.Sprintf("Jira responded with %s", resp.Status))
	}

	var raw []jiraProject
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode jira projects: %w", err)
	}

	projects := make([]JiraProject, 0, len(raw))
	for _, p := range raw {
		out := JiraProject{ID: p.ID, Key: p.Key, Name: p.Name}
		if p.ProjectCategory != nil {
			name := p.ProjectCategory.Name
			out.Category = &name
		}
		projects = append(projects, out)
	}
	return projects, nil
}
