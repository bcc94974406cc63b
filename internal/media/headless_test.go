package media_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"vidash/internal/api"
	"vidash/internal/media"
	"vidash/internal/testsupport"
)

func newHeadless(t *testing.T) (*media.HeadlessPlayer, *testsupport.ManualScheduler, *testsupport.FakeServer, *[]media.Event) {
	t.Helper()
	srv := testsupport.NewFakeServer(t)
	client, err := api.New(api.Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	sched := testsupport.NewInlineScheduler()
	player := media.NewHeadlessPlayer(sched, client, media.HeadlessOptions{
		TimeUpdate: 250 * time.Millisecond,
		Bounds:     media.Bounds{Width: 40, Height: 12},
	})
	var events []media.Event
	player.SetEventHandler(func(evt media.Event) { events = append(events, evt) })
	return player, sched, srv, &events
}

func kinds(events []media.Event) []media.EventKind {
	out := make([]media.EventKind, 0, len(events))
	for _, evt := range events {
		out = append(out, evt.Kind)
	}
	return out
}

func TestHeadlessPlayerLoadsVideo(t *testing.T) {
	player, sched, srv, events := newHeadless(t)
	srv.SetMedia("/video/a.mp4", testsupport.VideoBytes(8192))
	srv.SetMediaDuration("/video/a.mp4", 12.5)

	player.Attach(srv.URL + "/video/a.mp4")
	sched.RunPending()

	got := kinds(*events)
	if len(got) != 2 || got[0] != media.EventLoadedMetadata || got[1] != media.EventLoadedData {
		t.Fatalf("unexpected events %v", got)
	}
	if !player.Loaded() || player.Format() != "mp4" || player.Duration() != 12.5 {
		t.Fatalf("loaded=%v format=%q duration=%v", player.Loaded(), player.Format(), player.Duration())
	}
}

func TestHeadlessPlayerReportsErrors(t *testing.T) {
	player, sched, srv, events := newHeadless(t)
	srv.SetMedia("/video/notes.txt", []byte("plain text, not a video at all"))

	player.Attach(srv.URL + "/video/notes.txt")
	sched.RunPending()
	if len(*events) != 1 || (*events)[0].Kind != media.EventError || !errors.Is((*events)[0].Err, media.ErrUnsupportedMedia) {
		t.Fatalf("expected unsupported media error, got %+v", *events)
	}

	*events = nil
	player.Attach(srv.URL + "/converted/missing.mp4")
	sched.RunPending()
	if len(*events) != 1 || (*events)[0].Kind != media.EventError {
		t.Fatalf("expected load error for 404, got %+v", *events)
	}
	if player.Loaded() {
		t.Fatal("failed source must not be loaded")
	}
}

func TestHeadlessPlayerClock(t *testing.T) {
	player, sched, srv, events := newHeadless(t)
	srv.SetMedia("/video/a.mp4", testsupport.VideoBytes(1024))
	srv.SetMediaDuration("/video/a.mp4", 2)
	player.Attach(srv.URL + "/video/a.mp4")
	sched.RunPending()
	*events = nil

	player.Play()
	sched.Advance(time.Second)
	if got := player.CurrentTime(); math.Abs(got-1) > 1e-9 {
		t.Fatalf("position after 1s: %v", got)
	}
	updates := 0
	for _, evt := range *events {
		if evt.Kind == media.EventTimeUpdate {
			updates++
		}
	}
	if updates != 4 {
		t.Fatalf("expected 4 time updates per second, got %d", updates)
	}

	sched.Advance(2 * time.Second)
	if !player.Paused() || player.CurrentTime() != 2 {
		t.Fatalf("player should stop at end: paused=%v pos=%v", player.Paused(), player.CurrentTime())
	}

	player.Seek(-3)
	if player.CurrentTime() != 0 {
		t.Fatalf("seek should clamp at zero, got %v", player.CurrentTime())
	}
}

func TestHeadlessPlayerIgnoresStaleLoads(t *testing.T) {
	srv := testsupport.NewFakeServer(t)
	srv.SetMedia("/video/a.mp4", testsupport.VideoBytes(1024))
	client, err := api.New(api.Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	sched := testsupport.NewManualScheduler()
	player := media.NewHeadlessPlayer(sched, client, media.HeadlessOptions{})
	var events []media.Event
	player.SetEventHandler(func(evt media.Event) { events = append(events, evt) })

	player.Attach(srv.URL + "/video/a.mp4")
	player.Detach()
	sched.WaitSpawned()
	sched.RunPending()
	if len(events) != 0 || player.Source() != "" {
		t.Fatalf("stale load should be dropped, got %v", events)
	}
}

func TestHeadlessPlayerDropsEventsFromReplacedSource(t *testing.T) {
	player, sched, srv, events := newHeadless(t)
	srv.SetMedia("/video/a.mp4", testsupport.VideoBytes(1024))
	srv.SetMediaDuration("/video/a.mp4", 5)
	player.Attach(srv.URL + "/video/a.mp4")
	sched.RunPending()
	*events = nil

	player.Play()
	player.Pause()
	player.SetMuted(true)
	player.Attach(srv.URL + "/converted/missing.mp4")
	sched.RunPending()

	got := kinds(*events)
	if len(got) != 2 || got[0] != media.EventVolumeChange || got[1] != media.EventError {
		t.Fatalf("expected only the volume change and the new source's error, got %v", got)
	}
}
