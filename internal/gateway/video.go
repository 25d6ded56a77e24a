package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/pkg/llm"
)

// ErrPollBudgetExceeded is returned when a video operation is still running
// after PollPolicy.MaxPolls status checks.
var ErrPollBudgetExceeded = errors.New("video operation did not finish within the poll budget")

// PollPolicy spaces and bounds the status checks of a video operation.
type PollPolicy struct {
	Interval time.Duration
	MaxPolls int
}

// DefaultPollPolicy polls every 5s, at most 120 times (10 minutes).
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval: 5 * time.Second,
		MaxPolls: 120,
	}
}

// VideoRequest asks for one video.
type VideoRequest struct {
	Prompt string
	// SourceImage is an optional data URI or raw base64 starting frame.
	SourceImage string
}

// GenerateVideo submits a video generation, polls it every Poll.Interval
// until the provider reports completion, stores the result in the blob
// store and returns its locator. Polling stops when ctx is done or after
// Poll.MaxPolls checks.
func (g *Gateway) GenerateVideo(ctx context.Context, req VideoRequest) (string, error) {
	if g.cfg.Media == nil {
		return "", &types.ConfigurationError{Setting: "llm.api_key", Reason: "media generation requires the gemini provider"}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("video prompt is required")
	}

	vreq := &llm.VideoRequest{
		Model:          g.cfg.VideoModel,
		Prompt:         req.Prompt,
		NumberOfVideos: 1,
		Resolution:     g.cfg.VideoResolution,
		AspectRatio:    g.cfg.VideoAspectRatio,
	}
	if req.SourceImage != "" {
		img, err := DecodeImage(req.SourceImage)
		if err != nil {
			return "", fmt.Errorf("source image: %w", err)
		}
		vreq.Image = img
	}

	started := time.Now()
	locator, err := g.generateVideo(ctx, vreq)
	g.cfg.Metrics.ObserveGeneration("video", started, err)
	if err != nil {
		slog.Error("video generation failed", "model", vreq.Model, "error", err)
	}
	return locator, err
}

func (g *Gateway) generateVideo(ctx context.Context, vreq *llm.VideoRequest) (string, error) {
	var op *llm.VideoOperation
	err := g.cfg.Retry.Execute(ctx, g.cfg.Sleep, func() error {
		var err error
		op, err = g.cfg.Media.SubmitVideo(ctx, vreq)
		return err
	})
	if err != nil {
		return "", &types.ModelInvocationError{Model: vreq.Model, Err: err}
	}
	slog.Info("video submitted", "operation", op.Name, "model", vreq.Model)

	op, err = g.waitVideo(ctx, op)
	if err != nil {
		return "", err
	}

	video := op.Video
	if video == nil || len(video.Data) == 0 {
		if op.URI == "" {
			return "", types.ErrGenerationEmpty
		}
		if err := g.cfg.Retry.Execute(ctx, g.cfg.Sleep, func() error {
			var err error
			video, err = g.cfg.Media.DownloadVideo(ctx, op.URI)
			return err
		}); err != nil {
			return "", &types.ModelInvocationError{Model: vreq.Model, Err: err}
		}
		if video == nil || len(video.Data) == 0 {
			return "", types.ErrGenerationEmpty
		}
	}
	if video.MIMEType == "" {
		video.MIMEType = "video/mp4"
	}

	if g.cfg.Blobs == nil {
		return EncodeDataURI(video), nil
	}
	locator, err := g.cfg.Blobs.Put(ctx, video.Data, video.MIMEType)
	if err != nil {
		return "", fmt.Errorf("store video: %w", err)
	}
	return locator, nil
}

// waitVideo polls op until it is done. Transient poll failures are retried
// with the retry policy and do not count against MaxPolls.
func (g *Gateway) waitVideo(ctx context.Context, op *llm.VideoOperation) (*llm.VideoOperation, error) {
	for polls := 0; !op.Done; {
		if polls >= g.cfg.Poll.MaxPolls {
			return nil, fmt.Errorf("%w: %d polls", ErrPollBudgetExceeded, polls)
		}
		if err := g.cfg.Sleep(ctx, g.cfg.Poll.Interval); err != nil {
			return nil, err
		}
		polls++
		g.cfg.Metrics.VideoPoll()

		current := op
		err := g.cfg.Retry.Execute(ctx, g.cfg.Sleep, func() error {
			next, err := g.cfg.Media.PollVideo(ctx, current)
			if err != nil {
				return err
			}
			op = next
			return nil
		})
		if err != nil {
			return nil, &types.ModelInvocationError{Model: g.cfg.VideoModel, Err: err}
		}
		slog.Debug("video operation polled", "operation", op.Name, "poll", polls, "done", op.Done)
	}
	return op, nil
}
