package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/user/crewdesk/internal/config"
	ctxengine "github.com/user/crewdesk/internal/context"
	"github.com/user/crewdesk/internal/conversation"
	"github.com/user/crewdesk/internal/gateway"
	"github.com/user/crewdesk/internal/metrics"
	"github.com/user/crewdesk/internal/state"
	"github.com/user/crewdesk/internal/studio"
	"github.com/user/crewdesk/internal/workflow"
	"github.com/user/crewdesk/internal/workspace"
	"github.com/user/crewdesk/pkg/llm"
	"github.com/user/crewdesk/pkg/llm/gemini"
	"github.com/user/crewdesk/pkg/llm/openai"
)

// app holds the components shared by the daemon and the one-shot commands.
type app struct {
	cfg         *config.Config
	store       *workspace.Store
	blobs       *state.BlobStore
	transcripts *state.TranscriptStore
	engine      *ctxengine.Engine
	metrics     *metrics.Metrics
	gateway     *gateway.Gateway
	board       *workflow.Board
	studio      *studio.Queue
	session     *conversation.Session
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := workspace.Open(state.NewFileStore(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	blobs := state.NewBlobStore(cfg.DataDir)
	transcripts := state.NewTranscriptStore(cfg.DataDir)

	engine, err := ctxengine.New(cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("create context engine: %w", err)
	}
	m := metrics.New()

	chat, media, err := newProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	poll, err := cfg.PollInterval()
	if err != nil {
		return nil, err
	}

	gw := gateway.New(gateway.Config{
		Chat:             chat,
		Media:            media,
		Blobs:            blobs,
		Engine:           engine,
		Metrics:          m,
		ChatModel:        cfg.LLM.Model,
		Temperature:      cfg.LLM.Temperature,
		VideoModel:       cfg.Media.VideoModel,
		VideoResolution:  cfg.Media.VideoResolution,
		VideoAspectRatio: cfg.Media.VideoAspectRatio,
		Poll:             gateway.PollPolicy{Interval: poll, MaxPolls: cfg.Media.MaxPolls},
	})

	board := workflow.NewBoard(store,
		workflow.WithDistributor(gw),
		workflow.WithPublicURL(cfg.HTTP.PublicURL),
	)
	queue := studio.NewQueue(gw, store, int64(cfg.MaxConcurrent),
		studio.WithMetrics(m),
		studio.WithVideoModel(cfg.Media.VideoModel),
	)
	session := conversation.New(store, gw,
		conversation.WithTranscripts(transcripts),
		conversation.WithMetrics(m),
	)

	return &app{
		cfg:         cfg,
		store:       store,
		blobs:       blobs,
		transcripts: transcripts,
		engine:      engine,
		metrics:     m,
		gateway:     gw,
		board:       board,
		studio:      queue,
		session:     session,
	}, nil
}

// newProviders picks the chat backend from llm.provider. A missing key is
// not fatal: the gateway reports a ConfigurationError when a turn needs it.
func newProviders(ctx context.Context, cfg *config.Config) (llm.Provider, llm.MediaProvider, error) {
	lc := &llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	}
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		if lc.APIKey == "" && lc.BaseURL == "" {
			slog.Warn("no llm credentials configured, chat is disabled")
			return nil, nil, nil
		}
		return openai.New(lc), nil, nil
	default:
		client, err := gemini.New(ctx, lc)
		if errors.Is(err, gemini.ErrMissingAPIKey) {
			slog.Warn("no gemini api key configured, chat and media are disabled")
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}
}

// loadApp loads the configuration and builds the app for one-shot commands.
func loadApp(ctx context.Context) (*app, error) {
	cfg := loadConfig()
	setupLogging(cfg)
	return buildApp(ctx, cfg)
}
