package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/event"
)

func startHub(t *testing.T, h *Hub) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *gorilla.Conn {
	t.Helper()
	conn, res, err := gorilla.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	res.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *gorilla.Conn, name, id string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Message{Event: name, ID: id, Data: raw}))
}

func receive(t *testing.T, conn *gorilla.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_ResourceEventsReachJoinedRooms(t *testing.T) {
	h := NewHub(nil, zap.NewNop())
	url := startHub(t, h)

	skills := dial(t, url, nil)
	offices := dial(t, url, nil)
	send(t, skills, EventJoinRoom, "", "skill")
	send(t, offices, EventJoinRoom, "", "office")
	require.Eventually(t, func() bool {
		return h.Members("skill") == 1 && h.Members("office") == 1
	}, time.Second, 10*time.Millisecond)

	h.Publish(context.Background(), event.NewEvent("Skill", event.ActionCreated, []string{"s1"}, nil))
	h.Publish(context.Background(), event.NewEvent("Office", event.ActionDeleted, []string{"o1"}, nil))

	msg := receive(t, skills)
	assert.Equal(t, "skill.created", msg.Event)
	var ev event.ResourceEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, []string{"s1"}, ev.IDs)

	// the office client never joined the skill room
	assert.Equal(t, "office.deleted", receive(t, offices).Event)
}

func TestHub_LeaveRoom(t *testing.T) {
	h := NewHub(nil, zap.NewNop())
	url := startHub(t, h)

	conn := dial(t, url, nil)
	send(t, conn, EventJoinRoom, "", "skill")
	require.Eventually(t, func() bool { return h.Members("skill") == 1 }, time.Second, 10*time.Millisecond)

	send(t, conn, EventLeaveRoom, "", "skill")
	require.Eventually(t, func() bool { return h.Members("skill") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_DisconnectLeavesRooms(t *testing.T) {
	h := NewHub(nil, zap.NewNop())
	url := startHub(t, h)

	conn := dial(t, url, nil)
	send(t, conn, EventJoinRoom, "", "employee")
	require.Eventually(t, func() bool { return h.Members("employee") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.Members("employee") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_RejectsUnknownOrigin(t *testing.T) {
	h := NewHub(func(origin string) bool { return origin == "http://localhost:4200" }, zap.NewNop())
	url := startHub(t, h)

	_, res, err := gorilla.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	dial(t, url, http.Header{"Origin": {"http://localhost:4200"}})
}

func restApp() *fiber.App {
	app := fiber.New()
	app.Post("/skills", func(c fiber.Ctx) error {
		var body map[string]any
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		body["session"] = c.Cookies("staff_session")
		return c.Status(fiber.StatusCreated).JSON(body)
	})
	app.Get("/skills", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"list": []string{}, "q": c.Query("where")})
	})
	return app
}

func TestHub_RESTOverSocket(t *testing.T) {
	app := restApp()
	h := NewHub(nil, zap.NewNop()).EnableREST(func(r *http.Request) (*http.Response, error) {
		return app.Test(r)
	})
	url := startHub(t, h)

	caller := dial(t, url, http.Header{"Cookie": {"staff_session=abc"}})
	listener := dial(t, url, nil)

	send(t, caller, EventRequest, "42", Request{
		Method: "post",
		URL:    "/skills",
		Body:   json.RawMessage(`"{\"name\":\"Go\"}"`),
	})

	msg := receive(t, caller)
	assert.Equal(t, EventResponse, msg.Event)
	assert.Equal(t, "42", msg.ID)
	var resp Response
	require.NoError(t, json.Unmarshal(msg.Data, &resp))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"name":"Go","session":"abc"}`, string(resp.Body))

	for _, conn := range []*gorilla.Conn{caller, listener} {
		msg := receive(t, conn)
		assert.Equal(t, "POST::/skills", msg.Event)
		assert.JSONEq(t, `{"name":"Go","session":"abc"}`, string(msg.Data))
	}
}

func TestHub_RESTReadsAreNotBroadcast(t *testing.T) {
	app := restApp()
	h := NewHub(nil, zap.NewNop()).EnableREST(func(r *http.Request) (*http.Response, error) {
		return app.Test(r)
	})
	url := startHub(t, h)
	conn := dial(t, url, nil)

	send(t, conn, EventRequest, "1", Request{URL: "/skills?where=go"})
	send(t, conn, EventRequest, "2", Request{Method: "POST", URL: "/skills", Body: json.RawMessage(`{"name":"Go"}`)})

	var events []string
	for range 3 {
		msg := receive(t, conn)
		events = append(events, msg.Event+"#"+msg.ID)
	}
	assert.ElementsMatch(t, []string{"response#1", "response#2", "POST::/skills#"}, events)
}

func TestHub_RESTDisabled(t *testing.T) {
	url := startHub(t, NewHub(nil, zap.NewNop()))
	conn := dial(t, url, nil)

	send(t, conn, EventRequest, "7", Request{Method: "DELETE", URL: "/skills/1"})

	msg := receive(t, conn)
	var resp Response
	require.NoError(t, json.Unmarshal(msg.Data, &resp))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotifyEvent(t *testing.T) {
	assert.Equal(t, "PUT::/employees/1", NotifyEvent("put", "/employees/1?populate=office"))
	assert.Equal(t, "GET::/skills", NotifyEvent("", "/skills"))
}
