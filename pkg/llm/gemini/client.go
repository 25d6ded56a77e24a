// Package gemini implements the llm provider interfaces on top of the
// Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/user/crewdesk/pkg/llm"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("gemini: api key is required")

// Client implements llm.Provider and llm.MediaProvider for the Gemini API.
type Client struct {
	config     *llm.Config
	genai      *genai.Client
	httpClient *http.Client
}

// New creates a Gemini client with the given configuration. BaseURL is
// optional and only needed to point at a proxy or a test server.
func New(ctx context.Context, config *llm.Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		config: config,
		genai:  client,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

func (c *Client) model(req *llm.Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.config.Model
}

// Complete sends a chat completion request and returns the full response.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	resp, err := c.genai.Models.GenerateContent(ctx, c.model(req), toContents(req.Messages), c.toConfig(req))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	out := &llm.Response{Content: resp.Text()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// Stream sends a chat request and forwards each text fragment as it arrives.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Delta, error) {
	model := c.model(req)
	contents := toContents(req.Messages)
	config := c.toConfig(req)

	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		for resp, err := range c.genai.Models.GenerateContentStream(ctx, model, contents, config) {
			var delta llm.Delta
			if err != nil {
				delta.Err = fmt.Errorf("stream content: %w", err)
			} else {
				delta.Content = resp.Text()
				if delta.Content == "" {
					continue
				}
			}
			select {
			case ch <- delta:
			case <-ctx.Done():
				return
			}
			if delta.Err != nil {
				return
			}
		}
	}()
	return ch, nil
}

// GenerateImage returns the first inline image in the reply, or nil when
// the model answered with text only.
func (c *Client) GenerateImage(ctx context.Context, req *llm.ImageRequest) (*llm.InlineData, error) {
	var parts []*genai.Part
	if req.Reference != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Reference.Data, req.Reference.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	config := &genai.GenerateContentConfig{}
	if req.AspectRatio != "" || req.ImageSize != "" {
		config.ImageConfig = &genai.ImageConfig{
			AspectRatio: req.AspectRatio,
			ImageSize:   req.ImageSize,
		}
	}

	resp, err := c.genai.Models.GenerateContent(ctx, req.Model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return &llm.InlineData{Data: part.InlineData.Data, MIMEType: mime}, nil
			}
		}
	}
	return nil, nil
}

// SubmitVideo starts a long-running video generation.
func (c *Client) SubmitVideo(ctx context.Context, req *llm.VideoRequest) (*llm.VideoOperation, error) {
	var image *genai.Image
	if req.Image != nil {
		image = &genai.Image{ImageBytes: req.Image.Data, MIMEType: req.Image.MIMEType}
	}

	n := req.NumberOfVideos
	if n <= 0 {
		n = 1
	}
	op, err := c.genai.Models.GenerateVideos(ctx, req.Model, req.Prompt, image, &genai.GenerateVideosConfig{
		NumberOfVideos: int32(n),
		Resolution:     req.Resolution,
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("submit video: %w", err)
	}
	return fromOperation(op)
}

// PollVideo refreshes the status of an operation returned by SubmitVideo.
func (c *Client) PollVideo(ctx context.Context, op *llm.VideoOperation) (*llm.VideoOperation, error) {
	handle, ok := op.Handle.(*genai.GenerateVideosOperation)
	if !ok {
		handle = &genai.GenerateVideosOperation{Name: op.Name}
	}
	next, err := c.genai.Operations.GetVideosOperation(ctx, handle, nil)
	if err != nil {
		return nil, fmt.Errorf("poll video: %w", err)
	}
	return fromOperation(next)
}

// DownloadVideo fetches a generated video. The file endpoint requires the
// API key on the request.
func (c *Client) DownloadVideo(ctx context.Context, uri string) (*llm.InlineData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download video (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read video: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || strings.HasPrefix(mime, "application/octet-stream") {
		mime = "video/mp4"
	}
	return &llm.InlineData{Data: data, MIMEType: mime}, nil
}

func (c *Client) toConfig(req *llm.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	switch {
	case req.Temperature != nil:
		config.Temperature = req.Temperature
	case c.config.Temperature != 0:
		config.Temperature = genai.Ptr(c.config.Temperature)
	}
	if c.config.MaxTokens > 0 {
		config.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toSchema(req.Schema)
	}
	return config
}

func toContents(messages []llm.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		var role genai.Role = genai.RoleUser
		if msg.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

func toSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:     genai.Type(strings.ToUpper(s.Type)),
		Items:    toSchema(s.Items),
		Required: s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toSchema(prop)
		}
	}
	return out
}

func fromOperation(op *genai.GenerateVideosOperation) (*llm.VideoOperation, error) {
	if op == nil {
		return nil, errors.New("empty video operation")
	}
	if op.Done && len(op.Error) > 0 {
		return nil, fmt.Errorf("video operation failed: %v", op.Error["message"])
	}

	out := &llm.VideoOperation{
		Name:   op.Name,
		Done:   op.Done,
		Handle: op,
	}
	if op.Response != nil {
		for _, gv := range op.Response.GeneratedVideos {
			if gv == nil || gv.Video == nil {
				continue
			}
			out.URI = gv.Video.URI
			if len(gv.Video.VideoBytes) > 0 {
				out.Video = &llm.InlineData{Data: gv.Video.VideoBytes, MIMEType: gv.Video.MIMEType}
			}
			break
		}
	}
	return out, nil
}
