package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivaspavlo/staff-management-system/internal/docs"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

func TestSystemHandler_Health(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }
	doc := docs.Build(schema.Default(), nil, "Staff API", "test")

	app := newTestApp(NewSystemHandler(map[string]HealthCheck{"mongo": ok, "redis": ok}, doc).RegisterRoutes)
	status, body := call(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "healthy", out["status"])

	app = newTestApp(NewSystemHandler(map[string]HealthCheck{"mongo": ok, "redis": down}, doc).RegisterRoutes)
	status, body = call(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "unhealthy", out["status"])
	assert.Equal(t, map[string]any{"mongo": "ok", "redis": "connection refused"}, out["checks"])
}

func TestSystemHandler_OpenAPI(t *testing.T) {
	doc := docs.Build(schema.Default(), DocMounts(), "Staff API", "test")
	app := newTestApp(NewSystemHandler(nil, doc).RegisterRoutes)

	status, body := call(t, app, http.MethodGet, "/docs/openapi.json", "")
	require.Equal(t, http.StatusOK, status)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	paths := out["paths"].(map[string]any)
	for _, ep := range EntityPaths {
		assert.Contains(t, paths, ep.Path)
	}
}
