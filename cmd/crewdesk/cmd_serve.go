package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/crewdesk/internal/delivery"
	"github.com/user/crewdesk/internal/knowledge"
	"github.com/user/crewdesk/internal/scheduler"
	"github.com/user/crewdesk/internal/telegram"
	"github.com/user/crewdesk/internal/webhook"
)

const pidFile = "crewdesk.pid"

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the crewdesk daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, pidFile)
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	a.studio.Start(ctx)
	defer a.studio.Stop()

	// Notification delivery
	reg := delivery.NewRegistry()
	reg.Register("log:", delivery.LogHandler)
	targets := []string{"log:"}

	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, a.session, a.store, a.board, a.studio)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")

		reg.Register("telegram:", adapter.Deliver)
		if cfg.Telegram.NotifyChatID != 0 {
			targets = append(targets, telegram.Target(cfg.Telegram.NotifyChatID))
		}
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	dispatcher := delivery.NewDispatcher(reg, targets...)
	detach := dispatcher.Attach(a.store)
	defer detach()
	go dispatcher.Run(ctx)

	sched := scheduler.New(a.board, a.store, cfg.Scheduler.Spec)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	if cfg.Knowledge.WatchDir != "" {
		watcher, err := knowledge.NewWatcher(cfg.Knowledge.WatchDir, a.store)
		if err != nil {
			return fmt.Errorf("create knowledge watcher: %w", err)
		}
		if err := watcher.Sync(); err != nil {
			slog.Warn("initial knowledge sync failed", "dir", cfg.Knowledge.WatchDir, "error", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("knowledge watcher stopped", "error", err)
			}
		}()
		slog.Info("knowledge watcher started", "dir", cfg.Knowledge.WatchDir)
	}

	if cfg.HTTP.Enabled {
		srv := webhook.NewServer(a.store, a.board,
			webhook.WithBlobs(a.blobs),
			webhook.WithMetrics(a.metrics.Handler()),
		)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: srv,
		}
		go func() {
			slog.Info("http server started", "listen", cfg.HTTP.Listen, "public_url", cfg.HTTP.PublicURL)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http server error", "error", err)
			}
		}()
		defer httpServer.Close()
	}

	slog.Info("crewdesk started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_provider", cfg.LLM.Provider,
		"agents", len(a.store.Agents()),
		"tasks", len(a.store.Tasks()),
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, werr := writePIDFile(cfg.DataDir); werr != nil {
					slog.Error("failed to re-write PID file", "error", werr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
