package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// ErrStreamClosed is returned by StreamState when the server ends the
// stream cleanly.
var ErrStreamClosed = errors.New("event stream closed")

// Event is one dispatched server-sent event.
type Event struct {
	Name string
	Data string
	ID   string
}

// StreamState opens GET /state/stream and delivers events until the
// connection ends or ctx is cancelled. onOpen runs once the response headers
// confirm an event stream. The returned error is never nil.
func (c *Client) StreamState(ctx context.Context, onOpen func(), onEvent func(Event)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/state/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("open state stream: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		return fmt.Errorf("open state stream: unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	if onOpen != nil {
		onOpen()
	}
	if err := ReadEvents(resp.Body, onEvent); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read state stream: %w", err)
	}
	return ErrStreamClosed
}

// ReadEvents parses a text/event-stream body, calling fn for each dispatched
// event. It returns nil at a clean end of input.
func ReadEvents(r io.Reader, fn func(Event)) error {
	reader := bufio.NewReader(r)
	var (
		name    string
		id      string
		data    strings.Builder
		hasData bool
	)
	dispatch := func() {
		if hasData && fn != nil {
			eventName := name
			if eventName == "" {
				eventName = "message"
			}
			fn(Event{Name: eventName, Data: strings.TrimSuffix(data.String(), "\n"), ID: id})
		}
		name = ""
		data.Reset()
		hasData = false
	}

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "":
				dispatch()
			case strings.HasPrefix(line, ":"):
			default:
				field, value, _ := strings.Cut(line, ":")
				value = strings.TrimPrefix(value, " ")
				switch field {
				case "event":
					name = value
				case "data":
					data.WriteString(value)
					data.WriteByte('\n')
					hasData = true
				case "id":
					id = value
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
