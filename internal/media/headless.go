package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/h2non/filetype"

	"vidash/internal/api"
	"vidash/internal/eventloop"
	"vidash/internal/logging"
)

// probeBytes covers every container signature the sniffer knows.
const probeBytes = 262

// ErrUnsupportedMedia is reported when a source is reachable but does not
// look like a video container.
var ErrUnsupportedMedia = errors.New("unsupported media")

// Prober reads the first bytes of a media URL.
type Prober interface {
	ProbeMedia(ctx context.Context, mediaURL string, n int) (api.Probe, error)
}

// HeadlessOptions configures a HeadlessPlayer.
type HeadlessOptions struct {
	TimeUpdate   time.Duration
	ProbeTimeout time.Duration
	Bounds       Bounds
	Logger       *slog.Logger
}

// HeadlessPlayer is a Player without a decoder. Loading probes the source
// and sniffs the container; playback advances a position with the
// scheduler's clock.
type HeadlessPlayer struct {
	sched   eventloop.Scheduler
	prober  Prober
	opts    HeadlessOptions
	logger  *slog.Logger
	handler func(Event)

	src      string
	loadGen  uint64
	loaded   bool
	muted    bool
	paused   bool
	position float64
	started  time.Time
	duration float64
	bounds   Bounds
	ticker   eventloop.Timer
	format   string
}

// NewHeadlessPlayer constructs an empty, paused player.
func NewHeadlessPlayer(sched eventloop.Scheduler, prober Prober, opts HeadlessOptions) *HeadlessPlayer {
	if opts.TimeUpdate <= 0 {
		opts.TimeUpdate = 250 * time.Millisecond
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	return &HeadlessPlayer{
		sched:    sched,
		prober:   prober,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "player"),
		paused:   true,
		duration: math.NaN(),
		bounds:   opts.Bounds,
	}
}

func (p *HeadlessPlayer) SetEventHandler(fn func(Event)) {
	p.handler = fn
}

// emit queues evt for the handler. Events tied to a source are dropped when
// another source was attached before they run; volume changes always apply.
func (p *HeadlessPlayer) emit(kind EventKind, err error) {
	handler := p.handler
	if handler == nil {
		return
	}
	evt := Event{Kind: kind, Err: err}
	gen := p.loadGen
	p.sched.Post(func() {
		if kind != EventVolumeChange && gen != p.loadGen {
			return
		}
		handler(evt)
	})
}

// Attach starts loading url.
func (p *HeadlessPlayer) Attach(url string) {
	p.stopClock()
	p.src = url
	p.loadGen++
	p.loaded = false
	p.paused = true
	p.position = 0
	p.duration = math.NaN()
	p.format = ""
	if url == "" {
		return
	}

	gen := p.loadGen
	p.sched.Spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.ProbeTimeout)
		probe, err := p.prober.ProbeMedia(ctx, url, probeBytes)
		cancel()
		p.sched.Post(func() { p.finishLoad(gen, probe, err) })
	})
}

func (p *HeadlessPlayer) finishLoad(gen uint64, probe api.Probe, err error) {
	if gen != p.loadGen {
		return
	}
	if err != nil {
		p.emit(EventError, fmt.Errorf("load %s: %w", p.src, err))
		return
	}
	kind, matchErr := filetype.Match(probe.Head)
	if matchErr != nil || !filetype.IsVideo(probe.Head) {
		p.emit(EventError, fmt.Errorf("load %s: %w", p.src, ErrUnsupportedMedia))
		return
	}
	p.loaded = true
	p.format = kind.Extension
	p.duration = probe.Duration
	p.logger.Debug("media loaded",
		logging.String("format", p.format),
		logging.Int64("bytes", probe.Size),
		logging.Float64("duration", p.duration))
	p.emit(EventLoadedMetadata, nil)
	p.emit(EventLoadedData, nil)
}

// Detach unloads the current source.
func (p *HeadlessPlayer) Detach() {
	if p.src == "" {
		return
	}
	p.Attach("")
}

func (p *HeadlessPlayer) Source() string {
	return p.src
}

// Format is the sniffed container extension, empty until loaded.
func (p *HeadlessPlayer) Format() string {
	return p.format
}

// Loaded reports whether the current source finished loading.
func (p *HeadlessPlayer) Loaded() bool {
	return p.loaded
}

func (p *HeadlessPlayer) Muted() bool {
	return p.muted
}

func (p *HeadlessPlayer) SetMuted(muted bool) {
	if p.muted == muted {
		return
	}
	p.muted = muted
	p.emit(EventVolumeChange, nil)
}

// Play starts the clock. It is a no-op until the source has loaded.
func (p *HeadlessPlayer) Play() {
	if !p.loaded || !p.paused {
		return
	}
	p.paused = false
	p.started = p.sched.Now()
	p.ticker = p.sched.Every(p.opts.TimeUpdate, p.onTick)
	p.emit(EventPlay, nil)
}

// Pause stops the clock and freezes the position.
func (p *HeadlessPlayer) Pause() {
	if p.paused {
		return
	}
	p.position = p.CurrentTime()
	p.paused = true
	p.stopClock()
	p.emit(EventPause, nil)
}

func (p *HeadlessPlayer) Paused() bool {
	return p.paused
}

// Seek moves the position, clamped to [0, duration].
func (p *HeadlessPlayer) Seek(seconds float64) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return
	}
	p.position = p.clamp(seconds)
	if !p.paused {
		p.started = p.sched.Now()
	}
	p.emit(EventTimeUpdate, nil)
}

func (p *HeadlessPlayer) CurrentTime() float64 {
	if p.paused {
		return p.position
	}
	elapsed := p.sched.Now().Sub(p.started).Seconds()
	return p.clamp(p.position + elapsed)
}

func (p *HeadlessPlayer) Duration() float64 {
	return p.duration
}

func (p *HeadlessPlayer) Bounds() Bounds {
	return p.bounds
}

// SetBounds changes the on-screen box and announces a resize.
func (p *HeadlessPlayer) SetBounds(b Bounds) {
	if b == p.bounds {
		return
	}
	p.bounds = b
	p.emit(EventResize, nil)
}

func (p *HeadlessPlayer) onTick() {
	if p.paused {
		return
	}
	if !math.IsNaN(p.duration) && p.CurrentTime() >= p.duration {
		p.Pause()
		return
	}
	p.emit(EventTimeUpdate, nil)
}

func (p *HeadlessPlayer) stopClock() {
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
}

func (p *HeadlessPlayer) clamp(seconds float64) float64 {
	if seconds < 0 {
		return 0
	}
	if !math.IsNaN(p.duration) && seconds > p.duration {
		return p.duration
	}
	return seconds
}

var _ Player = (*HeadlessPlayer)(nil)
