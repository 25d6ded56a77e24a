// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type AgentID string
type TaskID string
type MessageID string
type NotificationID string
type MediaID string
type DocumentID string
type JobID string
type ChannelID string

// TeamChannel is the shared channel where every agent is reachable.
const TeamChannel ChannelID = "team-general"

// TeamChannelName is the display name of the shared channel.
const TeamChannelName = "Full Team"

const teamPrefix = "team:"

func NewTaskID() TaskID {
	return TaskID(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

func NewNotificationID() NotificationID {
	return NotificationID(uuid.New().String())
}

func NewMediaID() MediaID {
	return MediaID(uuid.New().String())
}

func NewDocumentID() DocumentID {
	return DocumentID(uuid.New().String())
}

func NewJobID() JobID {
	return JobID(uuid.New().String())
}

// NewTeamChannel builds a team channel scoped to an external surface,
// e.g. NewTeamChannel("telegram", "123") yields "team:telegram:123".
func NewTeamChannel(parts ...string) ChannelID {
	return ChannelID(teamPrefix + strings.Join(parts, ":"))
}

// DirectChannel returns the 1:1 channel for an agent.
func DirectChannel(id AgentID) ChannelID {
	return ChannelID(id)
}

// IsTeam reports whether the channel is shared by the whole roster.
func (c ChannelID) IsTeam() bool {
	return c == TeamChannel || strings.HasPrefix(string(c), teamPrefix)
}
