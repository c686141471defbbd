package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestSplitKey(t *testing.T) {
	assert.Equal(t, []string{"where"}, splitKey("where"))
	assert.Equal(t, []string{"ids", ""}, splitKey("ids[]"))
	assert.Equal(t, []string{"where", "name"}, splitKey("where[name]"))
	assert.Equal(t, []string{"a", "b", ""}, splitKey("a[b][]"))
	assert.Equal(t, []string{"[x]"}, splitKey("[x]"))
	assert.Equal(t, []string{"a[b"}, splitKey("a[b"))
}

func TestDecodeValue(t *testing.T) {
	assert.Equal(t, "2", decodeValue("page", "2"))
	assert.Equal(t, "5f1b2c3d4e5f6a7b8c9d0e1f", decodeValue("_id", "5f1b2c3d4e5f6a7b8c9d0e1f"))
	assert.Equal(t, true, decodeValue("structured", "true"))
	assert.Equal(t, "a b", decodeValue("name", `"a b"`))
	assert.Equal(t, []any{"a", "b"}, decodeValue("select", `["a","b"]`))
	assert.Equal(t, map[string]any{"name": "x"}, decodeValue("where", `{"name":"x"}`))
	assert.Equal(t, "{broken", decodeValue("where", "{broken"))
	assert.Equal(t, bson.D{{Key: "lastName", Value: float64(1)}, {Key: "firstName", Value: float64(-1)}},
		decodeValue("sort", `{"lastName":1,"firstName":-1}`))
}

func TestQuery(t *testing.T) {
	var got map[string]any
	app := fiber.New()
	app.Get("/", func(c fiber.Ctx) error {
		got = Query(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	values := url.Values{}
	values.Add("where", `{"office":"x"}`)
	values.Add("sort", `{"name":1,"createdAt":-1}`)
	values.Add("ids[]", "a")
	values.Add("ids[]", "b")
	values.Add("tag", "x")
	values.Add("tag", "y")
	values.Add("populate[office]", `["name"]`)
	values.Add("page", "3")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/?"+values.Encode(), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, map[string]any{"office": "x"}, got["where"])
	assert.Equal(t, bson.D{{Key: "name", Value: float64(1)}, {Key: "createdAt", Value: float64(-1)}}, got["sort"])
	assert.Equal(t, []any{"a", "b"}, got["ids"])
	assert.Equal(t, []any{"x", "y"}, got["tag"])
	assert.Equal(t, map[string]any{"office": []any{"name"}}, got["populate"])
	assert.Equal(t, "3", got["page"])
}
