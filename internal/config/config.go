// Package config loads the crewdesk configuration from a JSON file, a .env
// file, the environment and the OS keyring.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	LLM           struct {
		Provider    string  `json:"provider"`
		APIKey      string  `json:"api_key"`
		BaseURL     string  `json:"base_url"`
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
	} `json:"llm"`
	Media struct {
		ImageModel       string `json:"image_model"`
		VideoModel       string `json:"video_model"`
		VideoResolution  string `json:"video_resolution"`
		VideoAspectRatio string `json:"video_aspect_ratio"`
		PollInterval     string `json:"poll_interval"`
		MaxPolls         int    `json:"max_polls"`
	} `json:"media"`
	Scheduler struct {
		Spec string `json:"spec"`
	} `json:"scheduler"`
	Telegram struct {
		Token        string `json:"token"`
		NotifyChatID int64  `json:"notify_chat_id"`
	} `json:"telegram"`
	HTTP struct {
		Enabled   bool   `json:"enabled"`
		Listen    string `json:"listen"`
		PublicURL string `json:"public_url"`
	} `json:"http"`
	Knowledge struct {
		WatchDir string `json:"watch_dir"`
	} `json:"knowledge"`
	GitHub struct {
		Token string `json:"token"`
	} `json:"github"`
}

// Dir returns the default configuration directory, ~/.crewdesk.
func Dir() string {
	return filepath.Join(os.Getenv("HOME"), ".crewdesk")
}

// DefaultPath returns ~/.crewdesk/config.json.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Default returns the configuration written on first load.
func Default() *Config {
	cfg := &Config{
		DataDir:       Dir(),
		LogLevel:      "info",
		MaxConcurrent: 2,
	}
	cfg.LLM.Provider = ProviderGemini
	cfg.LLM.Temperature = 0.7
	cfg.Media.ImageModel = "gemini-2.5-flash-image"
	cfg.Media.VideoModel = "veo-3.1-fast-generate-preview"
	cfg.Media.VideoResolution = "720p"
	cfg.Media.VideoAspectRatio = "16:9"
	cfg.Media.PollInterval = "5s"
	cfg.Media.MaxPolls = 120
	cfg.Scheduler.Spec = "@every 1m"
	cfg.HTTP.Listen = "127.0.0.1:8080"
	cfg.HTTP.PublicURL = "http://localhost:8080"
	return cfg
}

// Load reads path, writing the defaults there if it does not exist, then
// applies .env, environment overrides and keyring secrets, in that order
// of precedence below the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	loadDotEnv(".env")
	applyEnv(cfg)
	applyKeyring(cfg)
	return cfg, nil
}

// loadDotEnv reads KEY=value pairs without overriding variables already set.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring unreadable .env", "path", path, "error", err)
	}
}

// applyEnv overrides settings from the environment (highest precedence).
func applyEnv(cfg *Config) {
	keys := []string{"GEMINI_API_KEY", "API_KEY"}
	if cfg.LLM.Provider == ProviderOpenAI {
		keys = []string{"OPENAI_API_KEY"}
	}
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			cfg.LLM.APIKey = v
			break
		}
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" && cfg.LLM.Provider == ProviderOpenAI {
		cfg.LLM.BaseURL = baseURL
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if ghToken := os.Getenv("GITHUB_TOKEN"); ghToken != "" {
		cfg.GitHub.Token = ghToken
	}
}

// applyKeyring fills secrets that are still empty from the OS keyring.
func applyKeyring(cfg *Config) {
	for key, dst := range secretFields(cfg) {
		if *dst != "" {
			continue
		}
		if v := GetSecret(key); v != "" {
			*dst = v
			slog.Debug("secret loaded from OS keyring", "key", key)
		}
	}
}

// Validate checks the values the services depend on.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.LLM.Provider)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	return nil
}

// PollInterval parses media.poll_interval. Empty means 5s.
func (c *Config) PollInterval() (time.Duration, error) {
	if c.Media.PollInterval == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Media.PollInterval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("media.poll_interval: invalid duration %q", c.Media.PollInterval)
	}
	return d, nil
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to its nested JSON map form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns every setting keyed by its dotted name, optionally
// with secrets masked.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// readRaw returns the file's settings as a flat map, keeping keys that the
// Config struct does not know.
func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return Flatten(m), nil
}

// GetValue returns one setting as stored in the file. The file is created
// with defaults if it does not exist.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	flat, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue updates one setting in an existing file. Values that parse as
// JSON (numbers, booleans) are stored typed; secrets and everything else
// are stored as strings.
func SetValue(path, key, value string) error {
	flat, err := readRaw(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var v any = value
	if !IsSecretKey(key) {
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			switch parsed.(type) {
			case float64, bool:
				v = parsed
			}
		}
	}
	flat[key] = v
	nested, err := Unflatten(flat)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(nested, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}
