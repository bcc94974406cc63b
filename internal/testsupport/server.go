package testsupport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Request is one call received by FakeServer.
type Request struct {
	Method   string
	Path     string
	Body     []byte
	ClientID string
}

// Upload is one file received by an upload endpoint.
type Upload struct {
	Path     string
	Filename string
	Size     int64
}

// FakeServer is an in-memory dashboard server. It keeps one JSON state
// object, merges POST /state patches into it, and pushes every change to
// connected /state/stream clients.
type FakeServer struct {
	URL string

	srv *httptest.Server

	mu            sync.Mutex
	state         map[string]any
	requests      []Request
	uploads       []Upload
	failures      map[string]int
	media         map[string][]byte
	durations     map[string]string
	subscribers   map[chan []byte]struct{}
	streamEnabled bool
	uploadLimit   int64
}

// NewFakeServer starts a server with an idle state and registers cleanup.
func NewFakeServer(t testing.TB) *FakeServer {
	t.Helper()

	f := &FakeServer{
		state:         map[string]any{"phase": "idle", "processing": false, "progress": 0, "events": []any{}},
		failures:      map[string]int{},
		media:         map[string][]byte{},
		durations:     map[string]string{},
		subscribers:   map[chan []byte]struct{}{},
		streamEnabled: true,
		uploadLimit:   1 << 30,
	}
	f.srv = httptest.NewServer(f.routes())
	f.URL = f.srv.URL
	t.Cleanup(f.srv.Close)
	t.Cleanup(f.CloseStreams)
	return f
}

func (f *FakeServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(f.record)
	r.Use(f.injectFailures)
	r.Get("/state", f.handleGetState)
	r.Get("/state/stream", f.handleStream)
	r.Post("/state", f.handlePatch)
	r.Post("/state/reset", f.handleReset)
	r.Post("/process/start", f.handleStart)
	r.Post("/process/cancel", f.handleCancel)
	r.Post("/video/clear", f.handleClear("video", "video_bytes", "converted", "playback"))
	r.Post("/protocol/clear", f.handleClear("protocol_csv", "protocol_csv_bytes"))
	r.Post("/download", f.handleDownload)
	r.Post("/upload", f.handleUpload("video", "video_bytes"))
	r.Post("/protocol/upload", f.handleUpload("protocol_csv", "protocol_csv_bytes"))
	r.Get("/video/{name}", f.handleMedia)
	r.Get("/converted/{name}", f.handleMedia)
	return r
}

// SetState replaces the whole state with the decoded JSON and pushes it.
func (f *FakeServer) SetState(t testing.TB, payload string) {
	t.Helper()
	var next map[string]any
	if err := json.Unmarshal([]byte(payload), &next); err != nil {
		t.Fatalf("fake server state: %v", err)
	}
	f.mu.Lock()
	f.state = next
	f.mu.Unlock()
	f.broadcast()
}

// State returns a copy of the current state.
func (f *FakeServer) State() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]any, len(f.state))
	for k, v := range f.state {
		out[k] = v
	}
	return out
}

// SendRaw writes an arbitrary state event to every stream client.
func (f *FakeServer) SendRaw(data string) {
	f.send([]byte(data))
}

// SetFailure makes every request to path answer with status until cleared
// with status 0.
func (f *FakeServer) SetFailure(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, path)
		return
	}
	f.failures[path] = status
}

// SetStreamEnabled controls whether /state/stream accepts connections.
func (f *FakeServer) SetStreamEnabled(enabled bool) {
	f.mu.Lock()
	f.streamEnabled = enabled
	f.mu.Unlock()
}

// SetUploadLimit sets the size above which uploads answer 413.
func (f *FakeServer) SetUploadLimit(limit int64) {
	f.mu.Lock()
	f.uploadLimit = limit
	f.mu.Unlock()
}

// SetMedia serves data at path, for example /converted/a.mp4.
func (f *FakeServer) SetMedia(path string, data []byte) {
	f.mu.Lock()
	f.media[path] = data
	f.mu.Unlock()
}

// SetMediaDuration advertises seconds via X-Content-Duration for path.
func (f *FakeServer) SetMediaDuration(path string, seconds float64) {
	f.mu.Lock()
	f.durations[path] = strconv.FormatFloat(seconds, 'f', -1, 64)
	f.mu.Unlock()
}

// CloseStreams ends every open /state/stream response.
func (f *FakeServer) CloseStreams() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		close(ch)
		delete(f.subscribers, ch)
	}
}

// StreamClients reports how many stream connections are open.
func (f *FakeServer) StreamClients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// Requests returns received requests, optionally filtered by "METHOD /path".
func (f *FakeServer) Requests(filter string) []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Request
	for _, req := range f.requests {
		if filter == "" || filter == req.Method+" "+req.Path {
			out = append(out, req)
		}
	}
	return out
}

// Uploads returns the files received so far.
func (f *FakeServer) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Upload(nil), f.uploads...)
}

// WaitForRequests polls until at least n requests match filter.
func (f *FakeServer) WaitForRequests(t testing.TB, filter string, n int) []Request {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		reqs := f.Requests(filter)
		if len(reqs) >= n {
			return reqs
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d %q requests (have %d)", n, filter, len(reqs))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (f *FakeServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil && !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Method:   r.Method,
			Path:     r.URL.Path,
			Body:     body,
			ClientID: r.Header.Get("X-Client-ID"),
		})
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *FakeServer) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.failures[r.URL.Path]
		f.mu.Unlock()
		if status != 0 {
			writeError(w, status, fmt.Sprintf("injected failure %d", status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeServer) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, f.State())
}

func (f *FakeServer) handleStream(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	enabled := f.streamEnabled
	f.mu.Unlock()
	if !enabled {
		writeError(w, http.StatusServiceUnavailable, "stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch := make(chan []byte, 32)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
		}
		f.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	initial, _ := json.Marshal(f.State())
	writeEvent(w, initial)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, data)
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, data []byte) {
	fmt.Fprint(w, "event: state\n")
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func (f *FakeServer) handlePatch(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	f.mutate(func(state map[string]any) {
		for k, v := range patch {
			state[k] = v
		}
	})
	writeJSON(w, http.StatusOK, f.State())
}

func (f *FakeServer) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClearEvents bool `json:"clear_events"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mutate(func(state map[string]any) {
		events := state["events"]
		for k := range state {
			delete(state, k)
		}
		state["phase"] = "idle"
		state["processing"] = false
		state["progress"] = 0
		if req.ClearEvents || events == nil {
			events = []any{}
		}
		state["events"] = events
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (f *FakeServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Settings map[string]any `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	f.mu.Lock()
	video, _ := f.state["video"].(string)
	protocol, _ := f.state["protocol_csv"].(string)
	f.mu.Unlock()
	if video == "" || protocol == "" {
		writeError(w, http.StatusBadRequest, "video and protocol required")
		return
	}
	f.mutate(func(state map[string]any) {
		state["settings"] = req.Settings
		state["phase"] = "processing"
		state["processing"] = true
		state["progress"] = 0
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (f *FakeServer) handleCancel(w http.ResponseWriter, _ *http.Request) {
	f.mutate(func(state map[string]any) {
		state["phase"] = "done"
		state["processing"] = false
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (f *FakeServer) handleClear(keys ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		f.mutate(func(state map[string]any) {
			for _, key := range keys {
				delete(state, key)
			}
		})
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (f *FakeServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL       string `json:"url"`
		StartTime *int   `json:"start_time"`
		EndTime   *int   `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	f.mutate(func(state map[string]any) {
		state["phase"] = "downloading"
		state["processing"] = true
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (f *FakeServer) handleUpload(nameKey, sizeKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file required")
			return
		}
		defer file.Close()
		size, err := io.Copy(io.Discard, file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "read failed")
			return
		}
		f.mu.Lock()
		limit := f.uploadLimit
		f.mu.Unlock()
		if size > limit {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		f.mu.Lock()
		f.uploads = append(f.uploads, Upload{Path: r.URL.Path, Filename: header.Filename, Size: size})
		f.mu.Unlock()
		f.mutate(func(state map[string]any) {
			state[nameKey] = header.Filename
			state[sizeKey] = size
			if nameKey == "video" {
				state["phase"] = "uploaded"
				delete(state, "converted")
			}
		})
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (f *FakeServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	data, ok := f.media[r.URL.Path]
	duration := f.durations[r.URL.Path]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if duration != "" {
		w.Header().Set("X-Content-Duration", duration)
	}
	http.ServeContent(w, r, chi.URLParam(r, "name"), time.Time{}, bytes.NewReader(data))
}

func (f *FakeServer) mutate(fn func(map[string]any)) {
	f.mu.Lock()
	fn(f.state)
	f.mu.Unlock()
	f.broadcast()
}

func (f *FakeServer) broadcast() {
	data, err := json.Marshal(f.State())
	if err != nil {
		return
	}
	f.send(data)
}

func (f *FakeServer) send(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- data:
		default:
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
