package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"vidash/internal/snapshot"
)

// FetchState retrieves the current state object, bypassing caches.
func (c *Client) FetchState(ctx context.Context) (snapshot.Snapshot, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/state", nil)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("get state: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return snapshot.Snapshot{}, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("read state: %w", err)
	}
	return snapshot.Decode(data)
}

// PatchState merges patch into the server state and returns the merged
// state.
func (c *Client) PatchState(ctx context.Context, patch snapshot.Patch) (snapshot.Snapshot, error) {
	data, err := c.postJSON(ctx, "/state", patch)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return snapshot.Decode(data)
}
