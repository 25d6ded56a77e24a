package llm

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by providers that lack a capability.
var ErrUnsupported = errors.New("operation not supported by provider")

// Provider defines the interface for interacting with LLM backends.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing.
type Provider interface {
	// Complete sends a chat completion request and returns the full response.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Stream sends a chat completion request and returns a channel of
	// incremental deltas. The channel is closed when the turn ends.
	Stream(ctx context.Context, req *Request) (<-chan Delta, error)
}

// MediaProvider generates images and videos.
type MediaProvider interface {
	// GenerateImage returns the first inline image of the reply, or nil if
	// the model answered without one.
	GenerateImage(ctx context.Context, req *ImageRequest) (*InlineData, error)

	// SubmitVideo starts a video generation and returns its operation.
	SubmitVideo(ctx context.Context, req *VideoRequest) (*VideoOperation, error)

	// PollVideo refreshes an operation's status.
	PollVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error)

	// DownloadVideo fetches the bytes behind a completed operation's URI.
	DownloadVideo(ctx context.Context, uri string) (*InlineData, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}
