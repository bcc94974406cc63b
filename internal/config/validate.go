package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateWriteBack(); err != nil {
		return err
	}
	if err := c.validatePlayer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	parsed, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("server.base_url must include a host")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return errors.New("server.request_timeout_seconds must be positive")
	}
	if c.Server.UploadMaxBytes <= 0 {
		return errors.New("server.upload_max_bytes must be positive")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.StreamRetryMS <= 0 {
		return errors.New("sync.stream_retry_ms must be positive")
	}
	if c.Sync.PollIntervalMS <= 0 {
		return errors.New("sync.poll_interval_ms must be positive")
	}
	if c.Sync.FetchTimeoutMS <= 0 {
		return errors.New("sync.fetch_timeout_ms must be positive")
	}
	if c.Sync.StuckAfterFailures < 1 {
		return errors.New("sync.stuck_after_failures must be at least 1")
	}
	return nil
}

func (c *Config) validateWriteBack() error {
	for name, value := range map[string]int{
		"writeback.ui_debounce_ms":       c.WriteBack.UIDebounceMS,
		"writeback.text_debounce_ms":     c.WriteBack.TextDebounceMS,
		"writeback.playback_debounce_ms": c.WriteBack.PlaybackDebounceMS,
	} {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

func (c *Config) validatePlayer() error {
	if c.Player.TimeUpdateMS <= 0 {
		return errors.New("player.time_update_ms must be positive")
	}
	if c.Player.SurfaceCols < 8 || c.Player.SurfaceRows < 4 {
		return errors.New("player.surface_cols must be at least 8 and player.surface_rows at least 4")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
