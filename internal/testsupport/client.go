package testsupport

import (
	"testing"

	"vidash/internal/api"
	"vidash/internal/config"
)

// NewClient builds an API client for cfg, failing the test on error.
func NewClient(t testing.TB, cfg *config.Config) *api.Client {
	t.Helper()
	client, err := api.NewFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	return client
}
