package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the dashboard server connection settings.
type Server struct {
	BaseURL               string `toml:"base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	UploadMaxBytes        int64  `toml:"upload_max_bytes"`
}

// Sync contains the state synchronization channel timings.
type Sync struct {
	StreamRetryMS      int `toml:"stream_retry_ms"`
	PollIntervalMS     int `toml:"poll_interval_ms"`
	FetchTimeoutMS     int `toml:"fetch_timeout_ms"`
	StuckAfterFailures int `toml:"stuck_after_failures"`
}

// WriteBack contains the debounce windows of the write-back lanes.
type WriteBack struct {
	UIDebounceMS       int `toml:"ui_debounce_ms"`
	TextDebounceMS     int `toml:"text_debounce_ms"`
	PlaybackDebounceMS int `toml:"playback_debounce_ms"`
}

// Cache contains the local persistent cache location.
type Cache struct {
	Path string `toml:"path"`
}

// Player contains headless player and overlay surface settings.
type Player struct {
	TimeUpdateMS int `toml:"time_update_ms"`
	SurfaceCols  int `toml:"surface_cols"`
	SurfaceRows  int `toml:"surface_rows"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for vidash.
//
// Configuration sections by subsystem:
//   - Server: dashboard base URL, request timeout, upload size limit
//   - Sync: push stream retry, safety-net poll, fetch timeout, stuck warning
//   - WriteBack: debounce windows for ui, text and playback lanes
//   - Cache: local persistent cache database
//   - Player: headless player tick and overlay surface size
//   - Logging: log format, level, and directory
type Config struct {
	Server    Server    `toml:"server"`
	Sync      Sync      `toml:"sync"`
	WriteBack WriteBack `toml:"writeback"`
	Cache     Cache     `toml:"cache"`
	Player    Player    `toml:"player"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidash/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidash.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Cache.Path)}
	if strings.TrimSpace(c.Logging.Dir) != "" {
		dirs = append(dirs, c.Logging.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequestTimeout is the bound applied to write and action requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// StreamRetry is the delay before reopening a failed push stream.
func (c *Config) StreamRetry() time.Duration {
	return millis(c.Sync.StreamRetryMS)
}

// PollInterval is the safety-net poll period.
func (c *Config) PollInterval() time.Duration {
	return millis(c.Sync.PollIntervalMS)
}

// FetchTimeout bounds each direct state fetch.
func (c *Config) FetchTimeout() time.Duration {
	return millis(c.Sync.FetchTimeoutMS)
}

// UIDebounce is the ui preference lane window.
func (c *Config) UIDebounce() time.Duration {
	return millis(c.WriteBack.UIDebounceMS)
}

// TextDebounce is the results text lane window.
func (c *Config) TextDebounce() time.Duration {
	return millis(c.WriteBack.TextDebounceMS)
}

// PlaybackDebounce is the playback position lane window.
func (c *Config) PlaybackDebounce() time.Duration {
	return millis(c.WriteBack.PlaybackDebounceMS)
}

// TimeUpdate is the headless player's time update period.
func (c *Config) TimeUpdate() time.Duration {
	return millis(c.Player.TimeUpdateMS)
}

func millis(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
