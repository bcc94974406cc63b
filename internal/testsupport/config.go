package testsupport

import (
	"path/filepath"
	"testing"

	"vidash/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Server.BaseURL = "http://127.0.0.1:1"
	cfgVal.Cache.Path = filepath.Join(base, "cache", "vidash.db")
	cfgVal.Logging.Dir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithServer points the config at a (usually fake) dashboard server.
func WithServer(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.BaseURL = baseURL
	}
}

// WithoutCache clears the cache path so the local cache is a no-op.
func WithoutCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Path = ""
	}
}

// WithUploadLimit overrides the client-side upload size limit.
func WithUploadLimit(limit int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.UploadMaxBytes = limit
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Logging.Dir)
}
