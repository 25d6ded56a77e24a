// internal/types/models.go
package types

import "time"

type Agent struct {
	ID                AgentID             `json:"id" yaml:"id"`
	Name              string              `json:"name" yaml:"name"`
	Role              Role                `json:"role" yaml:"role"`
	Model             ModelTier           `json:"model" yaml:"model"`
	SystemInstruction string              `json:"systemInstruction" yaml:"system_instruction"`
	Description       string              `json:"description" yaml:"description"`
	Avatar            string              `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	KnowledgeBase     []KnowledgeDocument `json:"knowledgeBase" yaml:"knowledge_base,omitempty"`
}

type KnowledgeDocument struct {
	ID           DocumentID `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	Content      string     `json:"content" yaml:"content"`
	Type         DocType    `json:"type" yaml:"type"`
	Source       DocSource  `json:"source" yaml:"source"`
	LastModified time.Time  `json:"lastModified" yaml:"last_modified"`
}

type Message struct {
	ID         MessageID   `json:"id"`
	Channel    ChannelID   `json:"channel"`
	Role       MessageRole `json:"role"`
	Text       string      `json:"text"`
	Timestamp  time.Time   `json:"timestamp"`
	SenderName string      `json:"senderName,omitempty"`
	Thinking   bool        `json:"thinking,omitempty"`
}

type Task struct {
	ID              TaskID         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Status          TaskStatus     `json:"status"`
	Priority        Priority       `json:"priority"`
	AssignedAgentID AgentID        `json:"assignedAgentId,omitempty"`
	Channel         SocialChannel  `json:"channel,omitempty"`
	MediaURL        string         `json:"mediaUrl,omitempty"`
	ScheduledDate   *time.Time     `json:"scheduledDate,omitempty"`
	ApprovalStatus  ApprovalStatus `json:"approvalStatus"`
	ApprovalToken   string         `json:"approvalToken,omitempty"`
	ClientName      string         `json:"clientName,omitempty"`
	ClientEmail     string         `json:"clientEmail,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type GeneratedMedia struct {
	ID             MediaID   `json:"id"`
	Type           MediaType `json:"type"`
	URL            string    `json:"url"`
	Prompt         string    `json:"prompt"`
	Timestamp      time.Time `json:"timestamp"`
	Model          string    `json:"model"`
	AspectRatio    string    `json:"aspectRatio,omitempty"`
	ReferenceImage string    `json:"referenceImage,omitempty"`
}

type Notification struct {
	ID        NotificationID `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Category  Category       `json:"type"`
	Read      bool           `json:"read"`
	Timestamp time.Time      `json:"timestamp"`
}
