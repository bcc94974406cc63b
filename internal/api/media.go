package api

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// Probe is the result of reading the first bytes of a media stream.
type Probe struct {
	Head        []byte
	Size        int64
	ContentType string
	// Duration comes from X-Content-Duration when the server sends it and
	// is NaN otherwise.
	Duration float64
}

// ProbeMedia requests the first n bytes of mediaURL with a Range header.
// Servers that ignore the range are read up to n bytes.
func (c *Client) ProbeMedia(ctx context.Context, mediaURL string, n int) (Probe, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return Probe{}, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", n-1))

	resp, err := c.http.Do(req)
	if err != nil {
		return Probe{}, fmt.Errorf("probe media: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return Probe{}, err
	}
	head, err := io.ReadAll(io.LimitReader(resp.Body, int64(n)))
	if err != nil {
		return Probe{}, fmt.Errorf("read media head: %w", err)
	}
	return Probe{
		Head:        head,
		Size:        totalSize(resp),
		ContentType: resp.Header.Get("Content-Type"),
		Duration:    contentDuration(resp),
	}, nil
}

// totalSize reads the full length from Content-Range, falling back to
// Content-Length for non-partial responses. Unknown sizes are -1.
func totalSize(resp *http.Response) int64 {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if idx := strings.LastIndexByte(cr, '/'); idx >= 0 {
			if total, err := strconv.ParseInt(cr[idx+1:], 10, 64); err == nil {
				return total
			}
		}
		return -1
	}
	return resp.ContentLength
}

func contentDuration(resp *http.Response) float64 {
	raw := strings.TrimSpace(resp.Header.Get("X-Content-Duration"))
	if raw == "" {
		return math.NaN()
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 || math.IsInf(seconds, 0) {
		return math.NaN()
	}
	return seconds
}
