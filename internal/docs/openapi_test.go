package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

func TestBuild(t *testing.T) {
	doc := Build(schema.Default(), []Mount{
		{Entity: schema.EntitySkill, Path: "/skills"},
		{Entity: "Missing", Path: "/missing"},
	}, "Staff API", "test")

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))

	paths := out["paths"].(map[string]any)
	assert.Contains(t, paths, "/skills")
	assert.Contains(t, paths, "/skills/{_id}")
	assert.Contains(t, paths, "/skills/bulk")
	assert.NotContains(t, paths, "/missing")

	skills := paths["/skills"].(map[string]any)
	assert.Contains(t, skills, "get")
	assert.Contains(t, skills, "post")

	schemas := out["components"].(map[string]any)["schemas"].(map[string]any)
	skill := schemas[schema.EntitySkill].(map[string]any)
	props := skill["properties"].(map[string]any)
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "parent")
	assert.Contains(t, skill["required"], "name")
	assert.Len(t, schemas, len(schema.Default().All()))
}
