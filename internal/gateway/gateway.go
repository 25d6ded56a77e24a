// Package gateway is the boundary to the generative provider. It turns
// agents, history and knowledge into provider requests for streaming chat,
// image generation, polled video generation and the one-shot completions
// used by the task board.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ctxengine "github.com/user/crewdesk/internal/context"
	"github.com/user/crewdesk/internal/metrics"
	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workflow"
	"github.com/user/crewdesk/pkg/llm"
)

// Defaults for the models and parameters the gateway uses.
const (
	DefaultUtilityModel     = "gemini-2.5-flash"
	DefaultVideoModel       = "veo-3.1-fast-generate-preview"
	DefaultVideoResolution  = "720p"
	DefaultVideoAspectRatio = "16:9"
	DefaultTemperature      = 0.7
	proImageSize            = "1K"
)

// Config wires a Gateway. Chat and Media may be nil when no credential is
// configured; the affected operations then fail with a ConfigurationError.
type Config struct {
	Chat    llm.Provider
	Media   llm.MediaProvider
	Blobs   types.BlobStore
	Engine  *ctxengine.Engine
	Metrics *metrics.Metrics

	// ChatModel, when set, replaces the agent's model tier. It is used with
	// OpenAI-compatible backends that do not know the Gemini tiers.
	ChatModel    string
	UtilityModel string
	Temperature  float32

	VideoModel       string
	VideoResolution  string
	VideoAspectRatio string

	Poll  PollPolicy
	Retry *RetryPolicy
	Sleep SleepFunc
}

// Gateway implements the chat, media and board completions. It holds no
// application state.
type Gateway struct {
	cfg Config
}

// New creates a Gateway, filling unset fields with defaults.
func New(cfg Config) *Gateway {
	if cfg.UtilityModel == "" {
		cfg.UtilityModel = DefaultUtilityModel
		if cfg.ChatModel != "" {
			cfg.UtilityModel = cfg.ChatModel
		}
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.VideoModel == "" {
		cfg.VideoModel = DefaultVideoModel
	}
	if cfg.VideoResolution == "" {
		cfg.VideoResolution = DefaultVideoResolution
	}
	if cfg.VideoAspectRatio == "" {
		cfg.VideoAspectRatio = DefaultVideoAspectRatio
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = DefaultPollPolicy().Interval
	}
	if cfg.Poll.MaxPolls <= 0 {
		cfg.Poll.MaxPolls = DefaultPollPolicy().MaxPolls
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}
	return &Gateway{cfg: cfg}
}

var _ workflow.Distributor = (*Gateway)(nil)

// ChatRequest is one conversational turn.
type ChatRequest struct {
	Agent     types.Agent
	History   []types.Message
	Utterance string
	Knowledge []types.KnowledgeDocument
}

func (g *Gateway) chatModel(agent types.Agent) string {
	if g.cfg.ChatModel != "" {
		return g.cfg.ChatModel
	}
	if agent.Model != "" {
		return string(agent.Model)
	}
	return DefaultUtilityModel
}

// StreamChat starts a turn and returns its fragments in arrival order. The
// channel is closed when the turn ends; a failure mid-stream arrives as a
// final Delta whose Err is a *types.ModelInvocationError.
func (g *Gateway) StreamChat(ctx context.Context, req ChatRequest) (<-chan llm.Delta, error) {
	if g.cfg.Chat == nil {
		return nil, &types.ConfigurationError{Setting: "llm.api_key"}
	}

	model := g.chatModel(req.Agent)
	prompt := g.cfg.Engine.BuildPrompt(&req.Agent, req.History, req.Utterance, req.Knowledge)
	slog.Debug("chat context assembled", "agent", req.Agent.Name, "model", model, "tokens", prompt.Tokens, "history", len(req.History))

	temp := g.cfg.Temperature
	started := time.Now()
	upstream, err := g.cfg.Chat.Stream(ctx, &llm.Request{
		Model:       model,
		System:      prompt.System,
		Messages:    prompt.Messages,
		Temperature: &temp,
	})
	if err != nil {
		g.cfg.Metrics.ObserveGeneration("chat", started, err)
		return nil, &types.ModelInvocationError{Model: model, Err: err}
	}

	out := make(chan llm.Delta)
	go func() {
		defer close(out)
		var streamErr error
		defer func() { g.cfg.Metrics.ObserveGeneration("chat", started, streamErr) }()
		for delta := range upstream {
			if delta.Err != nil {
				streamErr = delta.Err
				delta.Err = &types.ModelInvocationError{Model: model, Err: delta.Err}
			}
			select {
			case out <- delta:
			case <-ctx.Done():
				streamErr = ctx.Err()
				return
			}
			if streamErr != nil {
				return
			}
		}
	}()
	return out, nil
}

// ImageRequest asks for one image.
type ImageRequest struct {
	Prompt      string
	Model       types.ImageModel
	AspectRatio string
	// ReferenceImage is a data URI or raw base64 payload.
	ReferenceImage string
}

// GenerateImage returns a data URI for the generated image.
func (g *Gateway) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	if g.cfg.Media == nil {
		return "", &types.ConfigurationError{Setting: "llm.api_key", Reason: "media generation requires the gemini provider"}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("image prompt is required")
	}
	if req.Model == "" {
		req.Model = types.ImageModelFlash
	}
	if !req.Model.Valid() {
		return "", fmt.Errorf("unknown image model: %s", req.Model)
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
	}
	if !types.ValidAspectRatio(req.AspectRatio) {
		return "", fmt.Errorf("unsupported aspect ratio: %s", req.AspectRatio)
	}

	ireq := &llm.ImageRequest{
		Model:       string(req.Model),
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
	}
	if req.Model == types.ImageModelPro {
		ireq.ImageSize = proImageSize
	}
	if req.ReferenceImage != "" {
		ref, err := DecodeImage(req.ReferenceImage)
		if err != nil {
			return "", fmt.Errorf("reference image: %w", err)
		}
		ireq.Reference = ref
	}

	started := time.Now()
	var img *llm.InlineData
	err := g.cfg.Retry.Execute(ctx, g.cfg.Sleep, func() error {
		var err error
		img, err = g.cfg.Media.GenerateImage(ctx, ireq)
		return err
	})
	if err == nil && (img == nil || len(img.Data) == 0) {
		err = types.ErrGenerationEmpty
	}
	g.cfg.Metrics.ObserveGeneration("image", started, err)
	if err != nil {
		if errors.Is(err, types.ErrGenerationEmpty) {
			return "", err
		}
		return "", &types.ModelInvocationError{Model: ireq.Model, Err: err}
	}
	return EncodeDataURI(img), nil
}

// EnhanceBrief rewrites a task brief. An empty brief yields "" and the
// original brief is kept when the model answers with nothing.
func (g *Gateway) EnhanceBrief(ctx context.Context, brief string) (string, error) {
	if strings.TrimSpace(brief) == "" {
		return "", nil
	}
	if g.cfg.Chat == nil {
		return "", &types.ConfigurationError{Setting: "llm.api_key"}
	}

	prompt, err := ctxengine.RenderEnhancePrompt(brief)
	if err != nil {
		return "", err
	}
	started := time.Now()
	resp, err := g.cfg.Chat.Complete(ctx, &llm.Request{
		Model:    g.cfg.UtilityModel,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	g.cfg.Metrics.ObserveGeneration("enhance", started, err)
	if err != nil {
		return "", &types.ModelInvocationError{Model: g.cfg.UtilityModel, Err: err}
	}
	if out := strings.TrimSpace(resp.Content); out != "" {
		return out, nil
	}
	return brief, nil
}

var assignmentSchema = &llm.Schema{
	Type: "array",
	Items: &llm.Schema{
		Type: "object",
		Properties: map[string]*llm.Schema{
			"taskId":  {Type: "string"},
			"agentId": {Type: "string"},
			"reason":  {Type: "string"},
		},
		Required: []string{"taskId", "agentId"},
	},
}

// DistributeBacklog asks the model to assign tasks to agents. A reply that
// is not a JSON array of assignments yields an empty result.
func (g *Gateway) DistributeBacklog(ctx context.Context, tasks []types.Task, roster []types.Agent) ([]workflow.Assignment, error) {
	if g.cfg.Chat == nil {
		return nil, &types.ConfigurationError{Setting: "llm.api_key"}
	}

	prompt, err := ctxengine.RenderDistributionPrompt(tasks, roster)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	resp, err := g.cfg.Chat.Complete(ctx, &llm.Request{
		Model:    g.cfg.UtilityModel,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Schema:   assignmentSchema,
	})
	g.cfg.Metrics.ObserveGeneration("distribute", started, err)
	if err != nil {
		return nil, &types.ModelInvocationError{Model: g.cfg.UtilityModel, Err: err}
	}

	return parseAssignments(resp.Content), nil
}

func parseAssignments(content string) []workflow.Assignment {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out []workflow.Assignment
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		slog.Warn("unparseable distribution reply", "error", err)
		return []workflow.Assignment{}
	}
	if out == nil {
		out = []workflow.Assignment{}
	}
	return out
}

// DecodeImage accepts a data URI or a bare base64 payload. Bare payloads
// are assumed to be PNG.
func DecodeImage(s string) (*llm.InlineData, error) {
	mime := "image/png"
	payload := s
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, errors.New("malformed data URI")
		}
		if m, _, _ := strings.Cut(meta, ";"); m != "" {
			mime = m
		}
		payload = data
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return &llm.InlineData{Data: data, MIMEType: mime}, nil
}

// EncodeDataURI renders a payload as a data URI.
func EncodeDataURI(d *llm.InlineData) string {
	return "data:" + d.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(d.Data)
}
