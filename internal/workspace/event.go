package workspace

import (
	"time"

	"github.com/user/crewdesk/internal/types"
)

// EventKind names a change to workspace state.
type EventKind string

const (
	EventAgentsChanged     EventKind = "agents_changed"
	EventKnowledgeChanged  EventKind = "knowledge_changed"
	EventTaskAdded         EventKind = "task_added"
	EventTaskUpdated       EventKind = "task_updated"
	EventNotification      EventKind = "notification"
	EventNotificationsRead EventKind = "notifications_read"
	EventMediaAdded        EventKind = "media_added"
)

// Event is published to subscribers after each mutation.
type Event struct {
	Kind         EventKind           `json:"kind"`
	ID           string              `json:"id,omitempty"`
	At           time.Time           `json:"at"`
	Task         *types.Task         `json:"task,omitempty"`
	Notification *types.Notification `json:"notification,omitempty"`
}
