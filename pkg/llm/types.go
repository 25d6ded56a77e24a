package llm

// Message roles understood by every provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat or completion call.
type Request struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float32  `json:"temperature,omitempty"`
	// Schema, when set, asks the provider for a JSON reply of that shape.
	Schema *Schema `json:"schema,omitempty"`
}

// Schema is the subset of JSON Schema used for structured replies.
type Schema struct {
	Type       string             `json:"type"`
	Items      *Schema            `json:"items,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

// Response represents a complete response from an LLM provider.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption for a request/response pair.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Delta represents an incremental update during streaming. A delta with
// Err set is always the last one on the channel.
type Delta struct {
	Content string `json:"content,omitempty"`
	Err     error  `json:"-"`
}

// InlineData is a binary payload sent to or received from a provider.
type InlineData struct {
	Data     []byte
	MIMEType string
}

// ImageRequest asks for a single generated image.
type ImageRequest struct {
	Model       string
	Prompt      string
	AspectRatio string
	ImageSize   string
	Reference   *InlineData
}

// VideoRequest submits a long-running video generation.
type VideoRequest struct {
	Model          string
	Prompt         string
	Image          *InlineData
	NumberOfVideos int
	Resolution     string
	AspectRatio    string
}

// VideoOperation is the provider-side handle of a video generation.
type VideoOperation struct {
	Name string
	Done bool
	// URI is the download location of the first generated video.
	URI string
	// Video holds inline bytes when the provider returns them directly.
	Video *InlineData
	// Handle is the provider's own operation value, passed back on poll.
	Handle any
}
