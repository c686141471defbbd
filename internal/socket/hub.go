package socket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/event"
)

const (
	EventJoinRoom  = "join-room"
	EventLeaveRoom = "leave-room"
	EventRequest   = "request"
	EventResponse  = "response"

	writeWait = 10 * time.Second
)

// Message is the frame exchanged with socket clients in both directions.
type Message struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Request is a REST call carried over the socket. Body may be the JSON
// document itself or a string holding it.
type Request struct {
	Method string          `json:"method"`
	URL    string          `json:"url"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Response answers a Request.
type Response struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Dispatcher runs a request through the HTTP routes.
type Dispatcher func(*http.Request) (*http.Response, error)

// forwarded handshake headers carry the session into socket requests
var forwarded = []string{"Cookie", "Authorization", "Origin"}

type client struct {
	conn      *gorilla.Conn
	handshake *http.Request
	writeLock sync.Mutex
}

func (c *client) write(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(gorilla.TextMessage, data)
}

// Hub keeps the connected socket clients and their rooms. Resource events
// go to the room named after the entity in lower case; REST writes made
// over the socket are announced to every client as "METHOD::path".
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]map[string]struct{}
	rooms    map[string]map[*client]struct{}
	dispatch Dispatcher
	upgrader gorilla.Upgrader
	log      *zap.Logger
}

// NewHub builds a hub accepting upgrades from origins allowOrigin approves.
// A nil allowOrigin accepts every origin.
func NewHub(allowOrigin func(origin string) bool, log *zap.Logger) *Hub {
	h := &Hub{
		clients: make(map[*client]map[string]struct{}),
		rooms:   make(map[string]map[*client]struct{}),
		log:     log,
	}
	h.upgrader = gorilla.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowOrigin == nil {
				return true
			}
			return allowOrigin(r.Header.Get("Origin"))
		},
	}
	return h
}

// EnableREST lets clients send "request" messages. It must be called before
// the hub serves connections.
func (h *Hub) EnableREST(dispatch Dispatcher) *Hub {
	h.dispatch = dispatch
	return h
}

// ServeHTTP upgrades the connection and reads client messages until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Socket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, handshake: r}
	h.register(c)
	defer func() {
		h.unregister(c)
		conn.Close()
	}()

	h.readLoop(context.WithoutCancel(r.Context()), c)
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseGoingAway, gorilla.CloseNormalClosure) {
				h.log.Debug("Socket closed unexpectedly", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug("Malformed socket message", zap.Error(err))
			continue
		}

		switch msg.Event {
		case EventJoinRoom:
			if room, ok := roomName(msg.Data); ok {
				h.join(c, room)
			}
		case EventLeaveRoom:
			if room, ok := roomName(msg.Data); ok {
				h.leave(c, room)
			}
		case EventRequest:
			go h.serveRequest(ctx, c, msg)
		}
	}
}

func roomName(data json.RawMessage) (string, bool) {
	var room string
	if err := json.Unmarshal(data, &room); err != nil || room == "" {
		return "", false
	}
	return room, true
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = make(map[string]struct{})
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.clients[c] {
		h.removeFromRoom(c, room)
	}
	delete(h.clients, c)
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	joined, ok := h.clients[c]
	if !ok {
		return
	}
	joined[room] = struct{}{}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

func (h *Hub) leave(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if joined, ok := h.clients[c]; ok {
		delete(joined, room)
	}
	h.removeFromRoom(c, room)
}

// removeFromRoom expects h.mu to be held.
func (h *Hub) removeFromRoom(c *client, room string) {
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Members returns the number of clients in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(name string, data any) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	h.send(targets, name, data)
}

// BroadcastRoom sends an event to the clients that joined room.
func (h *Hub) BroadcastRoom(room, name string, data any) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	h.send(targets, name, data)
}

func (h *Hub) send(targets []*client, name string, data any) {
	if len(targets) == 0 {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error("Failed to marshal socket event", zap.String("event", name), zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.write(Message{Event: name, Data: raw}); err != nil {
			h.log.Debug("Failed to write socket event", zap.String("event", name), zap.Error(err))
		}
	}
}

// Publish forwards a resource event to the room of its entity.
func (h *Hub) Publish(_ context.Context, ev *event.ResourceEvent) {
	h.BroadcastRoom(strings.ToLower(ev.Entity), ev.EventType, ev)
}

// Close says goodbye to every client and drops the connections.
func (h *Hub) Close() {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.clients = make(map[*client]map[string]struct{})
	h.rooms = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for _, c := range targets {
		c.writeLock.Lock()
		_ = c.conn.WriteControl(gorilla.CloseMessage,
			gorilla.FormatCloseMessage(gorilla.CloseGoingAway, ""), time.Now().Add(writeWait))
		c.writeLock.Unlock()
		c.conn.Close()
	}
}

func (h *Hub) serveRequest(ctx context.Context, c *client, msg Message) {
	var req Request
	resp := Response{StatusCode: http.StatusBadRequest}
	if err := json.Unmarshal(msg.Data, &req); err == nil && req.URL != "" {
		resp = h.execute(ctx, c, &req)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		h.log.Error("Failed to marshal socket response", zap.Error(err))
		return
	}
	if err := c.write(Message{Event: EventResponse, ID: msg.ID, Data: data}); err != nil {
		h.log.Debug("Failed to write socket response", zap.Error(err))
	}

	if notifies(req.Method, resp.StatusCode) {
		h.Broadcast(NotifyEvent(req.Method, req.URL), resp.Body)
	}
}

func (h *Hub) execute(ctx context.Context, c *client, req *Request) Response {
	if h.dispatch == nil {
		return Response{StatusCode: http.StatusNotFound}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method(req.Method), req.URL, bytes.NewReader(requestBody(req.Body)))
	if err != nil {
		return Response{StatusCode: http.StatusBadRequest}
	}
	httpReq.Host = c.handshake.Host
	for _, name := range forwarded {
		if v := c.handshake.Header.Get(name); v != "" {
			httpReq.Header.Set(name, v)
		}
	}
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	res, err := h.dispatch(httpReq)
	if err != nil {
		h.log.Error("Socket request failed", zap.String("url", req.URL), zap.Error(err))
		return Response{StatusCode: http.StatusInternalServerError}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{StatusCode: http.StatusInternalServerError}
	}
	return Response{StatusCode: res.StatusCode, Body: responseBody(body)}
}

// NotifyEvent names the broadcast announcing a write, e.g. "POST::/skills".
func NotifyEvent(m, url string) string {
	path, _, _ := strings.Cut(url, "?")
	return fmt.Sprintf("%s::%s", method(m), path)
}

func notifies(m string, status int) bool {
	return method(m) != http.MethodGet && status >= 200 && status < 300
}

func method(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return strings.ToUpper(m)
}

func requestBody(raw json.RawMessage) []byte {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		return []byte(encoded)
	}
	return raw
}

func responseBody(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return body
	}
	raw, _ := json.Marshal(string(body))
	return raw
}
