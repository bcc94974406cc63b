package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vidash/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	t.Setenv("VIDASH_SERVER", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "vidash", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCache := filepath.Join(tempHome, ".local", "share", "vidash", "cache.db")
	if cfg.Cache.Path != wantCache {
		t.Fatalf("unexpected cache path: got %q want %q", cfg.Cache.Path, wantCache)
	}
	if cfg.Server.BaseURL != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected base url: %q", cfg.Server.BaseURL)
	}
	if cfg.StreamRetry() != 3*time.Second || cfg.PollInterval() != 5*time.Second || cfg.FetchTimeout() != 4*time.Second {
		t.Fatalf("unexpected sync timings: %v %v %v", cfg.StreamRetry(), cfg.PollInterval(), cfg.FetchTimeout())
	}
	if cfg.Sync.StuckAfterFailures != 2 {
		t.Fatalf("unexpected stuck threshold: %d", cfg.Sync.StuckAfterFailures)
	}
	if cfg.UIDebounce() != 250*time.Millisecond || cfg.TextDebounce() != 500*time.Millisecond || cfg.PlaybackDebounce() != time.Second {
		t.Fatalf("unexpected debounce windows: %v %v %v", cfg.UIDebounce(), cfg.TextDebounce(), cfg.PlaybackDebounce())
	}
	if cfg.Logging.Dir != "" {
		t.Fatalf("expected no log dir by default, got %q", cfg.Logging.Dir)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("VIDASH_SERVER", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	contents := `
[server]
base_url = "dash.local:9000/"

[sync]
poll_interval_ms = 1500

[cache]
path = "` + filepath.ToSlash(filepath.Join(dir, "cache", "vidash.db")) + `"

[logging]
format = "JSON"
dir = "` + filepath.ToSlash(filepath.Join(dir, "logs")) + `"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to resolve, got %q exists=%v", resolved, exists)
	}
	if cfg.Server.BaseURL != "http://dash.local:9000" {
		t.Fatalf("base url not normalized: %q", cfg.Server.BaseURL)
	}
	if cfg.PollInterval() != 1500*time.Millisecond {
		t.Fatalf("poll interval: %v", cfg.PollInterval())
	}
	if cfg.StreamRetry() != 3*time.Second {
		t.Fatalf("unset fields should keep defaults, got %v", cfg.StreamRetry())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format not lower-cased: %q", cfg.Logging.Format)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, want := range []string{filepath.Join(dir, "cache"), filepath.Join(dir, "logs")} {
		if info, err := os.Stat(want); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", want)
		}
	}
}

func TestEnvServerOverridesDefaultOnly(t *testing.T) {
	t.Setenv("VIDASH_SERVER", "https://env.example:8443")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.BaseURL != "https://env.example:8443" {
		t.Fatalf("expected env base url, got %q", cfg.Server.BaseURL)
	}

	path := filepath.Join(t.TempDir(), "explicit.toml")
	if err := os.WriteFile(path, []byte("[server]\nbase_url = \"http://file.example\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err = config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.BaseURL != "http://file.example" {
		t.Fatalf("explicit base url should win, got %q", cfg.Server.BaseURL)
	}
}

func TestLoadRejectsUnparseableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[server\nbase_url="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[writeback]") {
		t.Fatalf("sample config missing writeback section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	def := config.Default()
	if cfg.Sync != def.Sync || cfg.WriteBack != def.WriteBack || cfg.Player != def.Player {
		t.Fatalf("sample drifted from defaults: %+v", cfg)
	}
	if !strings.Contains(cfg.Cache.Path, "vidash") {
		t.Fatalf("expected cache path to contain vidash, got %q", cfg.Cache.Path)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"scheme":          func(c *config.Config) { c.Server.BaseURL = "ftp://host" },
		"missing host":    func(c *config.Config) { c.Server.BaseURL = "http://" },
		"request timeout": func(c *config.Config) { c.Server.RequestTimeoutSeconds = 0 },
		"upload limit":    func(c *config.Config) { c.Server.UploadMaxBytes = 0 },
		"stream retry":    func(c *config.Config) { c.Sync.StreamRetryMS = 0 },
		"poll interval":   func(c *config.Config) { c.Sync.PollIntervalMS = -1 },
		"fetch timeout":   func(c *config.Config) { c.Sync.FetchTimeoutMS = 0 },
		"stuck threshold": func(c *config.Config) { c.Sync.StuckAfterFailures = 0 },
		"negative ui":     func(c *config.Config) { c.WriteBack.UIDebounceMS = -5 },
		"time update":     func(c *config.Config) { c.Player.TimeUpdateMS = 0 },
		"surface":         func(c *config.Config) { c.Player.SurfaceCols = 2 },
		"log format":      func(c *config.Config) { c.Logging.Format = "xml" },
		"log level":       func(c *config.Config) { c.Logging.Level = "loud" },
	}
	for name, mutate := range cases {
		cfg := config.Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
