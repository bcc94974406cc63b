package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"vidash/internal/api"
	"vidash/internal/snapshot"
	"vidash/internal/testsupport"
)

func newClient(t *testing.T, baseURL string) *api.Client {
	t.Helper()
	client, err := api.New(api.Options{BaseURL: baseURL, Timeout: 2 * time.Second, UploadMaxBytes: 1 << 20})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return client
}

func TestFetchStateSendsClientIDAndDecodes(t *testing.T) {
	srv := testsupport.NewFakeServer(t)
	srv.SetState(t, `{"phase":"PROCESSING","processing":true,"progress":42,"video":"a.mp4"}`)
	client := newClient(t, srv.URL)

	snap, err := client.FetchState(context.Background())
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if snap.Phase != snapshot.PhaseProcessing || snap.Video != "a.mp4" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	reqs := srv.Requests("GET /state")
	if len(reqs) != 1 || reqs[0].ClientID != client.ClientID() || client.ClientID() == "" {
		t.Fatalf("client id not sent: %+v", reqs)
	}
}

func TestPatchStateMergesServerSide(t *testing.T) {
	srv := testsupport.NewFakeServer(t)
	client := newClient(t, srv.URL)

	merged, err := client.PatchState(context.Background(), snapshot.TextPatch("notes"))
	if err != nil {
		t.Fatalf("PatchState: %v", err)
	}
	if merged.ResultsText == nil || *merged.ResultsText != "notes" {
		t.Fatalf("merged state missing text: %+v", merged.ResultsText)
	}
	body := srv.Requests("POST /state")[0].Body
	var sent map[string]any
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("patch body: %v", err)
	}
	if len(sent) != 1 || sent["results_text"] != "notes" {
		t.Fatalf("patch should only carry results_text, got %s", body)
	}
}

func TestErrorResponsesCarryServerMessage(t *testing.T) {
	srv := testsupport.NewFakeServer(t)
	client := newClient(t, srv.URL)

	err := client.Download(context.Background(), api.DownloadRequest{})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "url required" {
		t.Fatalf("expected decoded api error, got %v", err)
	}
	if api.IsUnavailable(err) {
		t.Fatal("server response must not count as unavailable")
	}

	srv.SetFailure("/process/cancel", http.StatusRequestEntityTooLarge)
	if err := client.CancelProcess(context.Background()); !errors.Is(err, api.ErrTooLarge) {
		t.Fatalf("413 should match ErrTooLarge, got %v", err)
	}
}

func TestNonJSONErrorBodyFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<html>oops</html>", http.StatusBadGateway)
	}))
	defer srv.Close()
	client := newClient(t, srv.URL)

	err := client.ClearVideo(context.Background())
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Message != "request failed" {
		t.Fatalf("expected generic message, got %v", err)
	}
}

func TestIsUnavailableForRefusedConnection(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := newClient(t, url)
	_, err := client.FetchState(context.Background())
	if err == nil || !api.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestActionsPostExpectedBodies(t *testing.T) {
	srv := testsupport.NewFakeServer(t)
	srv.SetState(t, `{"phase":"uploaded","video":"a.mp4","protocol_csv":"p.csv"}`)
	client := newClient(t, srv.URL)
	ctx := context.Background()

	if err := client.StartProcess(ctx, snapshot.DefaultSettings()); err != nil {
		t.Fatalf("StartProcess: %v", err)
	}
	var start struct {
		Settings snapshot.Settings `json:"settings"`
	}
	if err := json.Unmarshal(srv.Requests("POST /process/start")[0].Body, &start); err != nil {
		t.Fatalf("decode start body: %v", err)
	}
	if start.Settings != snapshot.DefaultSettings() {
		t.Fatalf("unexpected settings: %+v", start.Settings)
	}

	begin, end := 5, 20
	if err := client.Download(ctx, api.DownloadRequest{URL: "https://v.example/x", StartTime: &begin, EndTime: &end}); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got := string(srv.Requests("POST /download")[0].Body); got != `{"url":"https://v.example/x","start_time":5,"end_time":20}` {
		t.Fatalf("download body: %s", got)
	}

	if err := client.ResetState(ctx, true); err != nil {
		t.Fatalf("ResetState: %v", err)
	}
	if got := string(srv.Requests("POST /state/reset")[0].Body); got != `{"clear_events":true}` {
		t.Fatalf("reset body: %s", got)
	}
	if err := client.ClearProtocol(ctx); err != nil {
		t.Fatalf("ClearProtocol: %v", err)
	}
	if _, ok := srv.State()["protocol_csv"]; ok {
		t.Fatal("protocol should be cleared")
	}
}

func TestUploadReportsProgressAndLimits(t *testing.T) {
	srv := testsupport.NewFakeServer(t)
	client := newClient(t, srv.URL)
	dir := t.TempDir()

	video := filepath.Join(dir, "clip.mp4")
	testsupport.WriteVideoFile(t, video, 100_000)
	var last, total atomic.Int64
	if err := client.Upload(context.Background(), api.UploadVideo, video, func(sent, all int64) {
		last.Store(sent)
		total.Store(all)
	}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if last.Load() != 100_000 || total.Load() != 100_000 {
		t.Fatalf("progress: sent=%d total=%d", last.Load(), total.Load())
	}
	uploads := srv.Uploads()
	if len(uploads) != 1 || uploads[0].Filename != "clip.mp4" || uploads[0].Size != 100_000 {
		t.Fatalf("unexpected uploads: %+v", uploads)
	}

	big := filepath.Join(dir, "big.mp4")
	testsupport.WriteVideoFile(t, big, 2<<20)
	if err := client.Upload(context.Background(), api.UploadVideo, big, nil); !errors.Is(err, api.ErrTooLarge) {
		t.Fatalf("expected local size rejection, got %v", err)
	}

	text := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, text, 512)
	if err := client.Upload(context.Background(), api.UploadVideo, text, nil); !errors.Is(err, api.ErrNotVideo) {
		t.Fatalf("expected non-video rejection, got %v", err)
	}
	if err := client.Upload(context.Background(), api.UploadProtocol, text, nil); err != nil {
		t.Fatalf("protocol upload should not sniff content: %v", err)
	}

	srv.SetUploadLimit(10)
	if err := client.Upload(context.Background(), api.UploadProtocol, text, nil); !errors.Is(err, api.ErrTooLarge) {
		t.Fatalf("server 413 should map to ErrTooLarge, got %v", err)
	}
	if len(srv.Requests("POST /upload")) != 1 {
		t.Fatal("rejected files must not reach the server")
	}
}

func TestProbeMediaReadsRange(t *testing.T) {
	srv := testsupport.NewFakeServer(t)
	srv.SetMedia("/video/clip.mp4", testsupport.VideoBytes(4096))
	client := newClient(t, srv.URL)

	probe, err := client.ProbeMedia(context.Background(), "/video/clip.mp4", 64)
	if err != nil {
		t.Fatalf("ProbeMedia: %v", err)
	}
	if len(probe.Head) != 64 || probe.Size != 4096 {
		t.Fatalf("unexpected probe: head=%d size=%d", len(probe.Head), probe.Size)
	}

	if _, err := client.ProbeMedia(context.Background(), "/converted/missing.mp4", 64); err == nil {
		t.Fatal("expected error for missing media")
	}
}

func TestStreamStateDeliversEvents(t *testing.T) {
	srv := testsupport.NewFakeServer(t)
	srv.SetState(t, `{"phase":"idle","progress":1}`)
	client := newClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opened := make(chan struct{})
	events := make(chan api.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- client.StreamState(ctx, func() { close(opened) }, func(evt api.Event) { events <- evt })
	}()

	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not open")
	}
	first := <-events
	if first.Name != "state" {
		t.Fatalf("unexpected event name %q", first.Name)
	}
	snap, err := snapshot.Decode([]byte(first.Data))
	if err != nil || snap.Progress.Or(0) != 1 {
		t.Fatalf("initial event not a state snapshot: %v %+v", err, snap)
	}

	srv.CloseStreams()
	select {
	case err := <-done:
		if !errors.Is(err, api.ErrStreamClosed) {
			t.Fatalf("expected ErrStreamClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end")
	}
}

func TestStreamStateRejectsUnavailableStream(t *testing.T) {
	srv := testsupport.NewFakeServer(t)
	srv.SetStreamEnabled(false)
	client := newClient(t, srv.URL)

	opened := false
	err := client.StreamState(context.Background(), func() { opened = true }, nil)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable || opened {
		t.Fatalf("expected 503 without open, got %v opened=%v", err, opened)
	}
}
