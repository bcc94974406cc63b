package media_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"vidash/internal/media"
	"vidash/internal/snapshot"
)

type stubPlayer struct {
	src      string
	muted    bool
	duration float64
	attached []string
	seeks    []float64
	detaches int
}

func newStubPlayer() *stubPlayer { return &stubPlayer{duration: math.NaN()} }

func (p *stubPlayer) SetEventHandler(func(media.Event)) {}
func (p *stubPlayer) Attach(url string)                 { p.src = url; p.attached = append(p.attached, url) }
func (p *stubPlayer) Detach()                           { p.src = ""; p.detaches++ }
func (p *stubPlayer) Source() string                    { return p.src }
func (p *stubPlayer) Muted() bool                       { return p.muted }
func (p *stubPlayer) SetMuted(m bool)                   { p.muted = m }
func (p *stubPlayer) Play()                             {}
func (p *stubPlayer) Pause()                            {}
func (p *stubPlayer) Paused() bool                      { return true }
func (p *stubPlayer) Seek(s float64)                    { p.seeks = append(p.seeks, s) }
func (p *stubPlayer) CurrentTime() float64              { return 0 }
func (p *stubPlayer) Duration() float64                 { return p.duration }
func (p *stubPlayer) Bounds() media.Bounds              { return media.Bounds{Width: 64, Height: 18} }

func mustDecode(t *testing.T, payload string) snapshot.Snapshot {
	t.Helper()
	snap, err := snapshot.Decode([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return snap
}

func newResolver(player *stubPlayer) *media.Resolver {
	return media.NewResolver(player, media.Options{URLFor: func(path string) string { return "http://dash" + path }})
}

func TestSyncPrefersConvertedAndSwapsOnlyOnChange(t *testing.T) {
	player := newStubPlayer()
	r := newResolver(player)
	snap := mustDecode(t, `{"video":"raw clip.mov","converted":"web.mp4"}`)

	if !r.Sync(snap) {
		t.Fatal("first sync should attach")
	}
	if player.src != "http://dash/converted/web.mp4" {
		t.Fatalf("unexpected source %q", player.src)
	}
	if r.MediaKey() != "converted:web.mp4" || !player.muted {
		t.Fatalf("key=%q muted=%v", r.MediaKey(), player.muted)
	}
	if r.Sync(snap) || len(player.attached) != 1 {
		t.Fatalf("unchanged snapshot must not reload (attached %d)", len(player.attached))
	}

	rawOnly := mustDecode(t, `{"video":"raw clip.mov"}`)
	if !r.Sync(rawOnly) || !strings.HasSuffix(player.src, "/video/raw%20clip.mov") {
		t.Fatalf("expected escaped raw source, got %q", player.src)
	}
	if r.MediaKey() != "video:raw clip.mov" {
		t.Fatalf("unexpected key %q", r.MediaKey())
	}

	if r.Sync(mustDecode(t, `{}`)) || player.src != "" || r.MediaKey() != "" {
		t.Fatalf("empty snapshot should detach: src=%q key=%q", player.src, r.MediaKey())
	}
}

func TestPendingSeekOnlyForMatchingKey(t *testing.T) {
	player := newStubPlayer()
	r := newResolver(player)

	r.Sync(mustDecode(t, `{"video":"a.mp4","playback":{"source":"video:a.mp4","position":42.5}}`))
	if pos, ok := r.PendingSeek(); !ok || pos != 42.5 {
		t.Fatalf("matching key should restore, got %v %v", pos, ok)
	}
	player.duration = 30
	r.HandleEvent(media.Event{Kind: media.EventLoadedMetadata})
	if len(player.seeks) != 1 || math.Abs(player.seeks[0]-29.8) > 1e-9 {
		t.Fatalf("seek should clamp to duration-0.2, got %v", player.seeks)
	}
	r.HandleEvent(media.Event{Kind: media.EventLoadedMetadata})
	if len(player.seeks) != 1 {
		t.Fatal("pending seek must apply once")
	}

	other := newStubPlayer()
	r2 := newResolver(other)
	r2.Sync(mustDecode(t, `{"video":"a.mp4","converted":"a_web.mp4","playback":{"source":"video:a.mp4","position":42.5}}`))
	if _, ok := r2.PendingSeek(); ok {
		t.Fatal("different key must not restore")
	}
	r2.HandleEvent(media.Event{Kind: media.EventLoadedMetadata})
	if len(other.seeks) != 0 {
		t.Fatalf("no seek expected, got %v", other.seeks)
	}
}

func TestUnknownDurationSeeksUnclamped(t *testing.T) {
	player := newStubPlayer()
	r := newResolver(player)
	r.Sync(mustDecode(t, `{"video":"a.mp4","playback":{"source":"video:a.mp4","position":500}}`))
	r.HandleEvent(media.Event{Kind: media.EventLoadedMetadata})
	if len(player.seeks) != 1 || player.seeks[0] != 500 {
		t.Fatalf("unexpected seeks %v", player.seeks)
	}
}

func TestFailoverToRawHappensOnce(t *testing.T) {
	player := newStubPlayer()
	r := newResolver(player)
	snap := mustDecode(t, `{"video":"a.mov","converted":"a.mp4"}`)
	r.Sync(snap)

	r.HandleEvent(media.Event{Kind: media.EventError, Err: errors.New("decode failed")})
	if !strings.HasSuffix(player.src, "/video/a.mov") {
		t.Fatalf("expected failover to raw, got %q", player.src)
	}
	if r.MediaKey() != "video:a.mov" || r.LoadError() {
		t.Fatalf("failover should reset key and error: key=%q err=%v", r.MediaKey(), r.LoadError())
	}

	if r.Sync(snap) {
		t.Fatal("later snapshots must not swap back to the failed converted asset")
	}

	r.HandleEvent(media.Event{Kind: media.EventError, Err: errors.New("still broken")})
	if len(player.attached) != 2 {
		t.Fatalf("second failure must not attach again, attached %v", player.attached)
	}
	if !r.LoadError() || r.ErrorText() == "" {
		t.Fatal("second failure should leave the indicator")
	}

	r.Sync(mustDecode(t, `{"video":"a.mov","converted":"a2.mp4"}`))
	if !strings.HasSuffix(player.src, "/converted/a2.mp4") || r.LoadError() {
		t.Fatalf("a new converted asset should be tried: src=%q err=%v", player.src, r.LoadError())
	}
}

func TestMuteIsForcedUntilUserUnmutes(t *testing.T) {
	player := newStubPlayer()
	r := newResolver(player)
	r.Sync(mustDecode(t, `{"video":"a.mp4"}`))
	if !player.muted {
		t.Fatal("new source should start muted")
	}

	player.muted = false
	r.HandleEvent(media.Event{Kind: media.EventVolumeChange})
	if !r.UserUnmuted() {
		t.Fatal("unmute should be remembered")
	}
	r.Sync(mustDecode(t, `{"video":"b.mp4"}`))
	r.HandleEvent(media.Event{Kind: media.EventLoadedData})
	if player.muted {
		t.Fatal("player must stay unmuted after the user unmuted")
	}
}

func TestFailoverDropsConvertedPosition(t *testing.T) {
	player := newStubPlayer()
	r := newResolver(player)
	r.Sync(mustDecode(t, `{"video":"raw.mov","converted":"web.mp4","playback":{"source":"converted:web.mp4","position":42}}`))
	if _, ok := r.PendingSeek(); !ok {
		t.Fatal("converted key should restore before failover")
	}

	r.HandleEvent(media.Event{Kind: media.EventError, Err: errors.New("decode failed")})
	if r.MediaKey() != "video:raw.mov" {
		t.Fatalf("expected raw key after failover, got %q", r.MediaKey())
	}
	if _, ok := r.PendingSeek(); ok {
		t.Fatal("raw asset must not inherit the converted position")
	}
	player.duration = 60
	r.HandleEvent(media.Event{Kind: media.EventLoadedMetadata})
	if len(player.seeks) != 0 {
		t.Fatalf("no seek expected on the raw asset, got %v", player.seeks)
	}
}
