package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidash/internal/config"
	"vidash/internal/logging"
)

const clientIDHeader = "X-Client-ID"

var (
	// ErrUnavailable marks a client that has no server to talk to.
	ErrUnavailable = errors.New("dashboard API unavailable")
	// ErrTooLarge is matched by errors for 413 responses and by uploads
	// rejected before sending.
	ErrTooLarge = errors.New("file too large")
)

// Error is a non-2xx response from the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// Is lets errors.Is(err, ErrTooLarge) match 413 responses.
func (e *Error) Is(target error) bool {
	return target == ErrTooLarge && e.Status == http.StatusRequestEntityTooLarge
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	UploadMaxBytes int64
	ClientID       string
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Client talks to one dashboard server.
type Client struct {
	base      *url.URL
	http      *http.Client
	stream    *http.Client
	timeout   time.Duration
	maxUpload int64
	clientID  string
	logger    *slog.Logger
}

// New constructs a client for opts.BaseURL.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return &Client{
		base: base,
		http: httpClient,
		// The push stream stays open indefinitely; only the caller's context
		// ends it.
		stream:    &http.Client{Transport: httpClient.Transport},
		timeout:   opts.Timeout,
		maxUpload: opts.UploadMaxBytes,
		clientID:  clientID,
		logger:    logging.NewComponentLogger(opts.Logger, "api"),
	}, nil
}

// NewFromConfig builds a client from the [server] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, ErrUnavailable
	}
	return New(Options{
		BaseURL:        cfg.Server.BaseURL,
		Timeout:        cfg.RequestTimeout(),
		UploadMaxBytes: cfg.Server.UploadMaxBytes,
		Logger:         logger,
	})
}

// ClientID returns the identifier sent with every request.
func (c *Client) ClientID() string {
	return c.clientID
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// ResolveURL turns a server-relative path such as /video/a.mp4 into an
// absolute URL. Absolute inputs are returned unchanged.
func (c *Client) ResolveURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return c.base.String() + path
	}
	joined := *c.base
	joined.Path = c.base.Path + ref.Path
	joined.RawPath = ""
	if ref.RawPath != "" {
		joined.RawPath = c.base.Path + ref.RawPath
	}
	return joined.String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.ResolveURL(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(clientIDHeader, c.clientID)
	return req, nil
}

// withTimeout bounds ctx by the configured request timeout when the caller
// has not set a tighter deadline.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < c.timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// postJSON sends payload (or an empty body when nil) and returns the raw
// response body.
func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", path, err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	return data, nil
}

// checkStatus converts a non-2xx response into *Error, reading the server's
// error field when the body carries one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &Error{Status: resp.StatusCode, Message: "request failed"}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && strings.TrimSpace(payload.Error) != "" {
		apiErr.Message = payload.Error
	} else if resp.StatusCode == http.StatusRequestEntityTooLarge {
		apiErr.Message = ErrTooLarge.Error()
	}
	return apiErr
}

// IsUnavailable reports whether err is a transport-level failure rather than
// a server response.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
