package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidash/internal/api"
	"vidash/internal/config"
	"vidash/internal/dashboard"
	"vidash/internal/localcache"
	"vidash/internal/media"
	"vidash/internal/reconcile"
	"vidash/internal/snapshot"
	"vidash/internal/testsupport"
)

type harness struct {
	t     *testing.T
	d     *dashboard.Dashboard
	sched *testsupport.ManualScheduler
	srv   *testsupport.FakeServer
	cfg   *config.Config
	cache *localcache.Cache
	views []reconcile.View
}

func newHarness(t *testing.T, state string, seed func(*localcache.Cache), opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	srv := testsupport.NewFakeServer(t)
	srv.SetState(t, state)
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithServer(srv.URL)}, opts...)...)
	cache := localcache.Open(cfg.Cache.Path, nil)
	t.Cleanup(func() { _ = cache.Close() })
	if seed != nil {
		seed(cache)
	}

	h := &harness{t: t, sched: testsupport.NewManualScheduler(), srv: srv, cfg: cfg, cache: cache}
	d, err := dashboard.New(dashboard.Options{
		Config:    cfg,
		Client:    testsupport.NewClient(t, cfg),
		Cache:     cache,
		Scheduler: h.sched,
		Observer:  func(v reconcile.View) { h.views = append(h.views, v) },
	})
	if err != nil {
		t.Fatalf("dashboard.New: %v", err)
	}
	h.d = d
	t.Cleanup(func() {
		d.Shutdown()
		h.sched.RunPending()
		h.sched.WaitSpawned()
	})
	return h
}

// pump runs posted tasks until cond holds.
func (h *harness) pump(what string, cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.sched.RunPending()
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("timed out waiting for %s; view status %q", what, h.d.View().Controls.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// sawStatus reports whether any published view carried text as its status.
func (h *harness) sawStatus(text string) func() bool {
	return func() bool {
		for _, v := range h.views {
			if v.Controls.Status == text {
				return true
			}
		}
		return false
	}
}

func (h *harness) start() {
	h.t.Helper()
	h.d.Start(context.Background())
	h.pump("first snapshot", func() bool {
		_, ok := h.d.Current()
		return ok
	})
}

func TestStartAppliesCachedPrefsThenSnapshot(t *testing.T) {
	h := newHarness(t,
		`{"phase":"uploaded","video":"a.mp4","protocol_csv":"p.csv","ui":{"sidebar_hidden":true,"events_open":false}}`,
		func(c *localcache.Cache) {
			prefs := snapshot.PrefsFrom(nil)
			prefs.SidebarHidden = false
			c.SavePrefs(prefs)
		})
	h.d.Start(context.Background())
	if len(h.views) == 0 || h.views[0].Layout.Prefs.SidebarHidden {
		t.Fatal("cached prefs should be shown before the first snapshot")
	}

	h.pump("snapshot render", func() bool { return h.d.View().VideoLabel == "a.mp4" })
	view := h.d.View()
	if !view.Controls.CanStart || !view.Layout.Prefs.SidebarHidden || view.Layout.Prefs.EventsOpen {
		t.Fatalf("snapshot not applied: %+v", view)
	}
	cached, ok := h.cache.LoadPrefs()
	if !ok || !cached.SidebarHidden || cached.EventsOpen {
		t.Fatalf("prefs should be mirrored into the cache: %+v", cached)
	}
}

func TestPanelTogglesCoalesceIntoOneWrite(t *testing.T) {
	h := newHarness(t, `{"ui":{"sidebar_hidden":true}}`, nil)
	h.start()

	h.d.TogglePanel(reconcile.PanelSidebar)
	h.d.TogglePanel(reconcile.PanelSidebar)
	h.d.TogglePanel(reconcile.PanelSidebar)
	if h.d.View().Layout.Prefs.SidebarHidden {
		t.Fatal("toggle should apply optimistically")
	}
	if cached, _ := h.cache.LoadPrefs(); cached.SidebarHidden {
		t.Fatal("cache should follow the toggle synchronously")
	}

	h.sched.Advance(h.cfg.UIDebounce())
	h.srv.WaitForRequests(t, "POST /state", 1)
	time.Sleep(50 * time.Millisecond)
	reqs := h.srv.Requests("POST /state")
	if len(reqs) != 1 {
		t.Fatalf("expected one write, got %d", len(reqs))
	}
	var body struct {
		UI snapshot.UIPrefs `json:"ui"`
	}
	if err := json.Unmarshal(reqs[0].Body, &body); err != nil {
		t.Fatalf("decode write: %v", err)
	}
	if body.UI.SidebarHidden {
		t.Fatalf("write should carry the final prefs: %+v", body.UI)
	}
}

func TestStalePushKeepsUnsentEdits(t *testing.T) {
	h := newHarness(t, `{"ui":{"sidebar_hidden":true},"results_text":"old"}`, nil)
	h.start()

	h.d.TogglePanel(reconcile.PanelSidebar)
	h.d.FocusNotes()
	h.d.EditNotes("new")
	h.d.CommitNotes()

	stale, err := snapshot.Decode([]byte(`{"ui":{"sidebar_hidden":true},"results_text":"old"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	h.d.ApplySnapshot(stale)
	if snap, _ := h.d.Current(); snap.Prefs().SidebarHidden || snap.Notes() != "new" {
		t.Fatalf("stale push reverted edits: hidden=%v notes=%q", snap.Prefs().SidebarHidden, snap.Notes())
	}
	if v := h.d.View(); v.ResultsText != "new" || !v.Layout.Visible(reconcile.PanelSidebar) {
		t.Fatalf("view reverted: notes=%q layout=%+v", v.ResultsText, v.Layout)
	}
	if prefs, ok := h.cache.LoadPrefs(); !ok || prefs.SidebarHidden {
		t.Fatalf("cache reverted: %+v %v", prefs, ok)
	}

	h.sched.Advance(h.cfg.TextDebounce())
	h.srv.WaitForRequests(t, "POST /state", 2)
	h.d.ApplySnapshot(stale)
	if snap, _ := h.d.Current(); !snap.Prefs().SidebarHidden || snap.Notes() != "old" {
		t.Fatal("once written, later pushes apply as delivered")
	}
}

func TestLogPanelMatchingPrefsDoesNotWrite(t *testing.T) {
	h := newHarness(t, `{"ui":{"events_open":true}}`, nil)
	h.start()
	h.d.SetLogPanel(dashboard.LogEvents, true)
	if h.d.View().Layout.Prefs.EventsOpen != true {
		t.Fatal("events panel should stay open")
	}
	h.sched.Advance(time.Second)
	if n := len(h.srv.Requests("POST /state")); n != 0 {
		t.Fatalf("unchanged panel state must not write, got %d", n)
	}

	h.d.SetLogPanel(dashboard.LogState, true)
	h.sched.Advance(h.cfg.UIDebounce())
	h.srv.WaitForRequests(t, "POST /state", 1)
}

func TestNotesSurviveSnapshotsWhileEditing(t *testing.T) {
	h := newHarness(t, `{"results_text":"server"}`, nil)
	h.start()

	h.d.FocusNotes()
	h.d.EditNotes("draft")
	h.srv.SetState(t, `{"results_text":"pushed","phase":"done"}`)
	h.pump("pushed snapshot", func() bool {
		snap, _ := h.d.Current()
		return snap.Phase == snapshot.PhaseDone
	})
	if got := h.d.View().ResultsText; got != "draft" {
		t.Fatalf("notes overwritten while editing: %q", got)
	}

	h.sched.Advance(h.cfg.TextDebounce())
	h.srv.WaitForRequests(t, "POST /state", 1)
	h.pump("merged notes", func() bool { return h.srv.State()["results_text"] == "draft" })

	h.d.CommitNotes()
	h.srv.SetState(t, `{"results_text":"later"}`)
	h.pump("later snapshot", func() bool { return h.d.View().ResultsText == "later" })
}

func TestNotesIgnoredWhileOperationActive(t *testing.T) {
	h := newHarness(t, `{"phase":"processing","processing":true,"results_text":"x"}`, nil)
	h.start()
	h.d.EditNotes("changed")
	if h.d.View().ResultsText != "x" {
		t.Fatal("notes must not change while an operation is active")
	}
	if _, err := h.d.ExportResults(filepath.Join(t.TempDir(), "r.txt")); err != nil {
		t.Fatalf("non-empty notes may be exported while active: %v", err)
	}
}

func TestDownloadValidation(t *testing.T) {
	h := newHarness(t, `{}`, nil)
	h.start()

	if err := h.d.Download("   ", nil); !errors.Is(err, dashboard.ErrInvalidInput) {
		t.Fatalf("empty URL: %v", err)
	}
	if h.d.View().Controls.Status != "Enter a URL" {
		t.Fatalf("status: %q", h.d.View().Controls.Status)
	}
	if err := h.d.Download("http://example.com/v", &dashboard.Trim{Start: "10", End: "5"}); !errors.Is(err, dashboard.ErrInvalidInput) {
		t.Fatalf("bad trim: %v", err)
	}
	if n := len(h.srv.Requests("POST /download")); n != 0 {
		t.Fatalf("invalid input must not reach the server, got %d", n)
	}

	fetches := len(h.srv.Requests("GET /state"))
	if err := h.d.Download(" http://example.com/v ", &dashboard.Trim{Start: "5", End: "20"}); err != nil {
		t.Fatalf("valid download: %v", err)
	}
	reqs := h.srv.WaitForRequests(t, "POST /download", 1)
	var body map[string]any
	_ = json.Unmarshal(reqs[0].Body, &body)
	if body["url"] != "http://example.com/v" || body["start_time"] != float64(5) || body["end_time"] != float64(20) {
		t.Fatalf("unexpected download body %v", body)
	}
	h.pump("refresh after action", func() bool { return len(h.srv.Requests("GET /state")) > fetches })
}

func TestBuildDownload(t *testing.T) {
	cases := []struct {
		name      string
		url       string
		trim      *dashboard.Trim
		wantErr   bool
		wantStart int
		wantEnd   int
	}{
		{name: "no trim", url: "http://a"},
		{name: "blank", url: " ", wantErr: true},
		{name: "clamped", url: "http://a", trim: &dashboard.Trim{Start: "-4", End: "5000000"}, wantStart: 0, wantEnd: 999999},
		{name: "equal", url: "http://a", trim: &dashboard.Trim{Start: "7", End: "7"}, wantErr: true},
		{name: "garbage start", url: "http://a", trim: &dashboard.Trim{Start: "abc", End: "3"}, wantStart: 0, wantEnd: 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := dashboard.BuildDownload(tc.url, tc.trim)
			if tc.wantErr {
				if !errors.Is(err, dashboard.ErrInvalidInput) {
					t.Fatalf("expected invalid input, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.trim == nil {
				if req.StartTime != nil || req.EndTime != nil {
					t.Fatal("no trim expected")
				}
				return
			}
			if *req.StartTime != tc.wantStart || *req.EndTime != tc.wantEnd {
				t.Fatalf("trim %d-%d", *req.StartTime, *req.EndTime)
			}
		})
	}
}

func TestStartSendsClampedSettings(t *testing.T) {
	h := newHarness(t, `{"video":"a.mp4","protocol_csv":"p.csv"}`, nil)
	h.start()
	h.d.FocusSetting(snapshot.FieldConfLimit)
	h.d.EditSetting(snapshot.FieldConfLimit, "99")
	h.d.CommitSetting(snapshot.FieldConfLimit)
	h.d.StartAnalysis()

	reqs := h.srv.WaitForRequests(t, "POST /process/start", 1)
	var body struct {
		Settings snapshot.Settings `json:"settings"`
	}
	if err := json.Unmarshal(reqs[0].Body, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := snapshot.Settings{FrameIntervalSec: 3, ConfLimit: 10, SessionTimeoutSec: 240, PhantomTimeoutSec: 60}
	if body.Settings != want {
		t.Fatalf("settings %+v", body.Settings)
	}
	h.pump("processing snapshot", func() bool { return h.d.View().Controls.OperationActive })
}

func TestUploadErrors(t *testing.T) {
	h := newHarness(t, `{}`, nil)
	h.start()

	err := h.d.Upload(api.UploadVideo, filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, dashboard.ErrInvalidInput) || h.d.View().Controls.Status != "File not found" {
		t.Fatalf("missing file: %v / %q", err, h.d.View().Controls.Status)
	}

	notVideo := filepath.Join(t.TempDir(), "notes.mp4")
	testsupport.WriteFile(t, notVideo, 1024)
	if err := h.d.Upload(api.UploadVideo, notVideo); !errors.Is(err, dashboard.ErrInvalidInput) {
		t.Fatalf("non-video: %v", err)
	}

	h.srv.SetUploadLimit(1024)
	video := filepath.Join(t.TempDir(), "big.mp4")
	testsupport.WriteVideoFile(t, video, 64<<10)
	if err := h.d.Upload(api.UploadVideo, video); err != nil {
		t.Fatalf("upload should be sent: %v", err)
	}
	h.pump("too large status", h.sawStatus("File too large"))
}

func TestUploadOverClientLimitSendsNothing(t *testing.T) {
	h := newHarness(t, `{}`, nil, testsupport.WithUploadLimit(1024), testsupport.WithoutCache())
	h.start()
	if h.cache.Enabled() {
		t.Fatal("cache should be disabled without a path")
	}

	video := filepath.Join(t.TempDir(), "big.mp4")
	testsupport.WriteVideoFile(t, video, 64<<10)
	err := h.d.Upload(api.UploadVideo, video)
	if !errors.Is(err, dashboard.ErrInvalidInput) {
		t.Fatalf("expected local rejection, got %v", err)
	}
	if h.d.View().Controls.Status != "File too large" {
		t.Fatalf("status %q", h.d.View().Controls.Status)
	}
	if uploads := h.srv.Requests("POST /upload"); len(uploads) != 0 {
		t.Fatalf("no upload request expected, got %d", len(uploads))
	}
}

func TestMalformedPushLeavesViewUnchanged(t *testing.T) {
	h := newHarness(t, `{"timestamps":[{"label":"a","time":1}]}`, nil)
	h.start()
	h.pump("stream open", func() bool { return h.srv.StreamClients() == 1 })

	before := len(h.d.View().Segments)
	h.srv.SendRaw("{not json")
	h.srv.SendRaw(`{"timestamps":[{"label":"a","time":1},{"label":"b","time":2}]}`)
	h.pump("valid push", func() bool { return len(h.d.View().Segments) == 2 })
	if before != 1 {
		t.Fatalf("initial segments %d", before)
	}
}

func TestProtocolUploadRemembersSize(t *testing.T) {
	h := newHarness(t, `{}`, nil)
	h.start()
	csv := filepath.Join(t.TempDir(), "protocol.csv")
	testsupport.WriteFile(t, csv, 3000)

	if err := h.d.Upload(api.UploadProtocol, csv); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if size, ok := h.cache.FileSize("protocol.csv"); !ok || size != 3000 {
		t.Fatalf("size not cached: %d %v", size, ok)
	}
	h.pump("upload finished", h.sawStatus("Upload finished"))
	h.pump("server protocol", func() bool { return h.d.View().ProtocolLabel == "protocol.csv · 2.9 KB" })
}

func TestMediaFailoverToRaw(t *testing.T) {
	h := newHarness(t, `{"video":"a.mov","converted":"a.mp4"}`, nil)
	h.srv.SetMedia("/video/a.mov", testsupport.VideoBytes(4096))
	h.start()

	player := h.d.Player().(*media.HeadlessPlayer)
	h.pump("failover", func() bool {
		return h.d.View().MediaKey == "video:a.mov" && player.Loaded()
	})
	if h.d.View().MediaError != "" {
		t.Fatalf("raw asset loaded; indicator should be clear: %q", h.d.View().MediaError)
	}
	if !player.Muted() {
		t.Fatal("player should be muted after failover")
	}
}

func TestPlaybackRestoreAndWriteBack(t *testing.T) {
	h := newHarness(t, `{"video":"b.mp4","playback":{"source":"video:b.mp4","position":3}}`, nil)
	h.srv.SetMedia("/video/b.mp4", testsupport.VideoBytes(4096))
	h.srv.SetMediaDuration("/video/b.mp4", 10)
	h.start()

	player := h.d.Player().(*media.HeadlessPlayer)
	h.pump("restored position", func() bool { return player.Loaded() && player.CurrentTime() == 3 })

	h.sched.Advance(h.cfg.PlaybackDebounce())
	first := decodePlayback(t, h.srv.WaitForRequests(t, "POST /state", 1)[0])
	if pos, _ := first.Position.Finite(); first.Source != "video:b.mp4" || pos != 3 {
		t.Fatalf("unexpected playback write %+v", first)
	}

	h.d.Play()
	h.sched.Advance(500 * time.Millisecond)
	h.d.Pause()
	h.sched.RunPending()
	forced := decodePlayback(t, h.srv.WaitForRequests(t, "POST /state", 2)[1])
	if pos, _ := forced.Position.Finite(); pos != 3.5 {
		t.Fatalf("pause should write the position immediately, got %+v", forced)
	}
}

func decodePlayback(t *testing.T, req testsupport.Request) snapshot.Playback {
	t.Helper()
	var body struct {
		Playback snapshot.Playback `json:"playback"`
	}
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Playback
}

func TestSegmentActivationSeeksAndPlays(t *testing.T) {
	h := newHarness(t, `{"video":"b.mp4","timestamps":[{"label":"late","time":6},{"label":"early","time":2}]}`, nil)
	h.srv.SetMedia("/video/b.mp4", testsupport.VideoBytes(4096))
	h.srv.SetMediaDuration("/video/b.mp4", 10)
	h.start()
	player := h.d.Player().(*media.HeadlessPlayer)
	h.pump("loaded", player.Loaded)

	h.d.SetFilter("EAR")
	if segs := h.d.View().Segments; len(segs) != 1 || segs[0].Label != "early" {
		t.Fatalf("filter not applied: %+v", segs)
	}
	if err := h.d.ActivateSegment(0); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if player.Paused() || player.CurrentTime() != 2 {
		t.Fatalf("expected playback from 2s, paused=%v pos=%v", player.Paused(), player.CurrentTime())
	}
	if err := h.d.ActivateSegment(5); !errors.Is(err, dashboard.ErrInvalidInput) {
		t.Fatalf("out of range: %v", err)
	}
	h.d.ClearFilter()
	if segs := h.d.View().Segments; len(segs) != 2 {
		t.Fatalf("clearing the filter should list every segment: %+v", segs)
	}
}

func TestDismissPanels(t *testing.T) {
	h := newHarness(t, `{"ui":{"sidebar_hidden":false,"right_panel_collapsed":true}}`, nil)
	h.start()

	h.d.HoverEnter(reconcile.PanelRight)
	if !h.d.View().Layout.Visible(reconcile.PanelRight) {
		t.Fatal("hover should open the collapsed panel")
	}
	h.d.HoverLeave(reconcile.PanelRight)
	if h.d.View().Layout.Visible(reconcile.PanelRight) {
		t.Fatal("leaving should close the transient panel")
	}
	h.d.HoverEnter(reconcile.PanelRight)
	h.d.DismissPanels()
	layout := h.d.View().Layout
	if layout.Visible(reconcile.PanelRight) || layout.Visible(reconcile.PanelSidebar) {
		t.Fatalf("panels should close: %+v", layout)
	}
	if snap, _ := h.d.Current(); !snap.Prefs().SidebarHidden {
		t.Fatal("closing an open sidebar should persist")
	}

	h.d.TogglePin(reconcile.PanelSidebar)
	h.d.DismissPanels()
	if !h.d.View().Layout.Visible(reconcile.PanelSidebar) {
		t.Fatal("pinned sidebar must stay open")
	}
}

func TestResetClearsLocalInputs(t *testing.T) {
	h := newHarness(t, `{"results_text":"x"}`, nil)
	h.start()
	h.d.EditNotes("draft")
	h.d.SetFilter("abc")
	h.d.Reset(false)
	h.pump("reset status", h.sawStatus("State reset"))
	h.pump("reset render", func() bool {
		v := h.d.View()
		return v.ResultsText == "" && v.SegmentFilter == ""
	})
	if reqs := h.srv.Requests("POST /state/reset"); len(reqs) != 1 {
		t.Fatalf("expected one reset, got %d", len(reqs))
	}
}

func TestStuckWarningClearedByNextRender(t *testing.T) {
	h := newHarness(t, `{}`, nil)
	h.start()
	h.d.StateStuck(2)
	if h.d.View().Controls.Status != reconcile.StuckText {
		t.Fatalf("stuck warning not shown: %q", h.d.View().Controls.Status)
	}
	h.d.ApplySnapshot(snapshot.Snapshot{Phase: snapshot.PhaseIdle})
	if h.d.View().Controls.Status != "" {
		t.Fatalf("render should clear the warning: %q", h.d.View().Controls.Status)
	}
}

func TestExportResults(t *testing.T) {
	h := newHarness(t, `{"results_text":"line one\nline two"}`, nil)
	h.start()
	path := filepath.Join(t.TempDir(), "out", dashboard.ResultsFile)
	written, err := h.d.ExportResults(path)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(written)
	if err != nil || string(data) != "line one\nline two" {
		t.Fatalf("exported %q, %v", data, err)
	}
}
