package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"vidash/internal/api"
	"vidash/internal/config"
	"vidash/internal/localcache"
	"vidash/internal/logging"
)

type commandContext struct {
	configFlag *string
	serverFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	cache *localcache.Cache
}

func newCommandContext(configFlag, serverFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		serverFlag: serverFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.serverFlag != nil {
			if server := strings.TrimSpace(*c.serverFlag); server != "" {
				cfg.Server.BaseURL = strings.TrimRight(server, "/")
			}
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.config)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) client() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.NewFromConfig(cfg, c.loggerValue())
}

// localCache opens the cache once per invocation. A cache that cannot be
// opened degrades to a no-op.
func (c *commandContext) localCache() *localcache.Cache {
	if c.cache == nil {
		path := ""
		if c.config != nil {
			path = c.config.Cache.Path
		}
		c.cache = localcache.Open(path, c.loggerValue())
	}
	return c.cache
}

func (c *commandContext) close() {
	if c.cache != nil {
		_ = c.cache.Close()
		c.cache = nil
	}
}

// wrapServerError adds a hint when the server cannot be reached.
func wrapServerError(err error, baseURL string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to dashboard: %s refused the connection; verify the server is running: %w", baseURL, err)
	case api.IsUnavailable(err):
		return fmt.Errorf("connect to dashboard at %s: %w", baseURL, err)
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
