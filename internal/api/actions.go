package api

import (
	"context"

	"vidash/internal/snapshot"
)

// DownloadRequest asks the server to fetch a video by URL, optionally
// trimmed to [StartTime, EndTime] seconds.
type DownloadRequest struct {
	URL       string `json:"url"`
	StartTime *int   `json:"start_time,omitempty"`
	EndTime   *int   `json:"end_time,omitempty"`
}

type startRequest struct {
	Settings snapshot.Settings `json:"settings"`
}

type resetRequest struct {
	ClearEvents bool `json:"clear_events"`
}

// StartProcess launches analysis with the given settings.
func (c *Client) StartProcess(ctx context.Context, settings snapshot.Settings) error {
	_, err := c.postJSON(ctx, "/process/start", startRequest{Settings: settings})
	return err
}

// CancelProcess requests cancellation of the running operation.
func (c *Client) CancelProcess(ctx context.Context) error {
	_, err := c.postJSON(ctx, "/process/cancel", nil)
	return err
}

// ResetState resets server state, optionally dropping the event log.
func (c *Client) ResetState(ctx context.Context, clearEvents bool) error {
	_, err := c.postJSON(ctx, "/state/reset", resetRequest{ClearEvents: clearEvents})
	return err
}

// ClearVideo removes the current video and its converted variant.
func (c *Client) ClearVideo(ctx context.Context) error {
	_, err := c.postJSON(ctx, "/video/clear", nil)
	return err
}

// ClearProtocol removes the companion protocol file.
func (c *Client) ClearProtocol(ctx context.Context) error {
	_, err := c.postJSON(ctx, "/protocol/clear", nil)
	return err
}

// Download starts a server-side download.
func (c *Client) Download(ctx context.Context, req DownloadRequest) error {
	_, err := c.postJSON(ctx, "/download", req)
	return err
}
