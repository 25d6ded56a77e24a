package types

import "fmt"

// Role is the fixed set of personas an agent can play.
type Role string

const (
	RoleManager     Role = "manager"
	RolePlanner     Role = "planner"
	RoleCarousel    Role = "carousel"
	RoleScript      Role = "script"
	RolePost        Role = "post"
	RoleCaption     Role = "caption"
	RoleSpreadsheet Role = "spreadsheet"
)

var roleLabels = map[Role]string{
	RoleManager:     "Manager",
	RolePlanner:     "Planner",
	RoleCarousel:    "Carousel Creator",
	RoleScript:      "Scriptwriter",
	RolePost:        "Post Creator",
	RoleCaption:     "Caption Writer",
	RoleSpreadsheet: "Spreadsheet Editor",
}

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleManager, RolePlanner, RoleCarousel, RoleScript, RolePost, RoleCaption, RoleSpreadsheet}
}

func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// Label returns the human readable role name.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

// ParseRole accepts a role's wire value.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role: %s", s)
	}
	return r, nil
}

// UnmarshalText rejects roles outside the enumeration.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ModelTier identifies the chat model an agent runs on.
type ModelTier string

const (
	ModelFlash     ModelTier = "gemini-2.5-flash"
	ModelFlashLite ModelTier = "gemini-2.5-flash-lite-latest"
	ModelPro       ModelTier = "gemini-3-pro-preview"
)

func (m ModelTier) Valid() bool {
	switch m {
	case ModelFlash, ModelFlashLite, ModelPro:
		return true
	}
	return false
}

// ParseModelTier accepts a chat model identifier.
func ParseModelTier(s string) (ModelTier, error) {
	m := ModelTier(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown model tier: %s", s)
	}
	return m, nil
}

// ImageModel identifies an image generation model.
type ImageModel string

const (
	ImageModelFlash ImageModel = "gemini-2.5-flash-image"
	ImageModelPro   ImageModel = "gemini-3-pro-image-preview"
)

func (m ImageModel) Valid() bool {
	return m == ImageModelFlash || m == ImageModelPro
}

// AspectRatios lists the supported image aspect ratios.
var AspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}

// ValidAspectRatio reports whether s is one of AspectRatios.
func ValidAspectRatio(s string) bool {
	for _, r := range AspectRatios {
		if r == s {
			return true
		}
	}
	return false
}

// DocType is the content type of a knowledge document.
type DocType string

const (
	DocText  DocType = "text"
	DocPDF   DocType = "pdf"
	DocMD    DocType = "md"
	DocCSV   DocType = "csv"
	DocJSON  DocType = "json"
	DocEmail DocType = "email"
	DocDoc   DocType = "doc"
	DocSheet DocType = "sheet"
)

// DocSource records where a knowledge document came from.
type DocSource string

const (
	SourceUpload DocSource = "upload"
	SourceDrive  DocSource = "gdrive"
	SourceGmail  DocSource = "gmail"
	SourceSheets DocSource = "sheets"
	SourceDocs   DocSource = "docs"
	SourceGitHub DocSource = "github"
	SourceWeb    DocSource = "web"
)

// MessageRole is the author side of a conversation message.
type MessageRole string

const (
	MessageUser  MessageRole = "user"
	MessageModel MessageRole = "model"
)

// TaskStatus is a kanban column.
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "backlog"
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusScheduled  TaskStatus = "scheduled"
	StatusDone       TaskStatus = "done"
)

// Statuses lists the board columns in pipeline order.
func Statuses() []TaskStatus {
	return []TaskStatus{StatusBacklog, StatusTodo, StatusInProgress, StatusReview, StatusScheduled, StatusDone}
}

func (s TaskStatus) Valid() bool {
	for _, v := range Statuses() {
		if v == s {
			return true
		}
	}
	return false
}

// Reviewable reports whether an approval decision may be taken in this column.
func (s TaskStatus) Reviewable() bool {
	return s == StatusReview || s == StatusScheduled
}

// ParseStatus accepts a column's wire value.
func ParseStatus(s string) (TaskStatus, error) {
	st := TaskStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown task status: %s", s)
	}
	return st, nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// SocialChannel is the publication target of a task.
type SocialChannel string

const (
	ChannelInstagram SocialChannel = "instagram"
	ChannelLinkedIn  SocialChannel = "linkedin"
	ChannelTikTok    SocialChannel = "tiktok"
	ChannelYouTube   SocialChannel = "youtube"
	ChannelBlog      SocialChannel = "blog"
)

func (c SocialChannel) Valid() bool {
	switch c {
	case ChannelInstagram, ChannelLinkedIn, ChannelTikTok, ChannelYouTube, ChannelBlog:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Category classifies a notification.
type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryWarning Category = "warning"
	CategoryEmail   Category = "email"
)
