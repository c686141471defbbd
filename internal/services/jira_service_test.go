package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/config"
)

func TestJiraService_Projects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bot" || pass != "pw" || r.URL.Path != jiraProjectsPath {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"1","key":"STAFF","name":"Staff","projectCategory":{"name":"Internal"}},
			{"id":"2","key":"WEB","name":"Web"}
		]`))
	}))
	defer srv.Close()

	s := NewJiraService(config.JiraConfig{Host: srv.URL, Username: "bot", Password: "pw"}, zap.NewNop())
	projects, err := s.Projects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "STAFF", projects[0].Key)
	require.NotNil(t, projects[0].Category)
	assert.Equal(t, "Internal", *projects[0].Category)
	assert.Nil(t, projects[1].Category)

	s = NewJiraService(config.JiraConfig{Host: srv.URL, Username: "bot", Password: "wrong"}, zap.NewNop())
	_, err = s.Projects(context.Background())
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
}

func TestJiraService_NotConfigured(t *testing.T) {
	s := NewJiraService(config.JiraConfig{}, zap.NewNop())
	_, err := s.Projects(context.Background())
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
}
