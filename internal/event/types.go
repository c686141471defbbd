package event

import (
	"strings"
)

const (
	ActionCreated     = "created"
	ActionUpdated     = "updated"
	ActionBulkUpdated = "bulkUpdated"
	ActionDeleted     = "deleted"
	ActionUpserted    = "upserted"
)

// ResourceEvent is published after a successful write on an entity.
type ResourceEvent struct {
	EventID   string   `json:"eventId"`
	EventType string   `json:"eventType"`
	Entity    string   `json:"entity"`
	Action    string   `json:"action"`
	IDs       []string `json:"ids,omitempty"`
	Data      any      `json:"data,omitempty"`
	ActorID   string   `json:"actorId,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// RoutingKey is "<entity>.<action>" with the entity in lower case.
func RoutingKey(entity, action string) string {
	return strings.ToLower(entity) + "." + action
}
