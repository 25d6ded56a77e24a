package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/user/crewdesk/internal/config"
)

// daemonClient reads the in-memory state (notifications, the media gallery)
// of a running daemon through its HTTP API.
type daemonClient struct {
	base string
	http *http.Client
}

func newDaemonClient(cfg *config.Config) (*daemonClient, error) {
	if !cfg.HTTP.Enabled {
		return nil, errors.New("the daemon's HTTP API is disabled; run `crewdesk config set http.enabled true` and restart it")
	}
	addr := cfg.HTTP.Listen
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return &daemonClient{
		base: "http://" + addr,
		http: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *daemonClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s (is `crewdesk serve` running?): %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, body.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}

func (c *daemonClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, out)
}

func (c *daemonClient) post(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodPost, path, out)
}
