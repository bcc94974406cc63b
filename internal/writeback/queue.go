package writeback

import (
	"context"
	"log/slog"
	"math"
	"time"

	"vidash/internal/api"
	"vidash/internal/config"
	"vidash/internal/eventloop"
	"vidash/internal/logging"
	"vidash/internal/snapshot"
)

// Writer applies a partial patch on the server.
type Writer interface {
	PatchState(ctx context.Context, patch snapshot.Patch) (snapshot.Snapshot, error)
}

// PrefsCache mirrors layout preferences locally.
type PrefsCache interface {
	SavePrefs(prefs snapshot.UIPrefs)
}

// Lane names a write-back path.
type Lane string

const (
	LaneUI       Lane = "ui"
	LaneText     Lane = "text"
	LanePlayback Lane = "playback"
)

// Options configures a Queue. Zero durations take the defaults.
type Options struct {
	UIDebounce       time.Duration
	TextDebounce     time.Duration
	PlaybackDebounce time.Duration
	Timeout          time.Duration
	Cache            PrefsCache
	Logger           *slog.Logger
}

// OptionsFromConfig maps the [writeback] section onto Options.
func OptionsFromConfig(cfg *config.Config, cache PrefsCache, logger *slog.Logger) Options {
	return Options{
		UIDebounce:       cfg.UIDebounce(),
		TextDebounce:     cfg.TextDebounce(),
		PlaybackDebounce: cfg.PlaybackDebounce(),
		Timeout:          cfg.RequestTimeout(),
		Cache:            cache,
		Logger:           logger,
	}
}

func (o Options) withDefaults() Options {
	if o.UIDebounce <= 0 {
		o.UIDebounce = 250 * time.Millisecond
	}
	if o.TextDebounce <= 0 {
		o.TextDebounce = 500 * time.Millisecond
	}
	if o.PlaybackDebounce <= 0 {
		o.PlaybackDebounce = time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

type lane struct {
	name    Lane
	delay   time.Duration
	timer   eventloop.Timer
	pending snapshot.Patch
}

func (l *lane) stop() bool {
	if l.timer == nil {
		return false
	}
	stopped := l.timer.Stop()
	l.timer = nil
	return stopped
}

// Queue holds one single-slot timer per lane.
type Queue struct {
	sched  eventloop.Scheduler
	writer Writer
	cache  PrefsCache
	opts   Options
	logger *slog.Logger

	ui       lane
	text     lane
	playback lane
}

// New constructs an idle queue.
func New(sched eventloop.Scheduler, writer Writer, opts Options) *Queue {
	opts = opts.withDefaults()
	return &Queue{
		sched:    sched,
		writer:   writer,
		cache:    opts.Cache,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "writeback"),
		ui:       lane{name: LaneUI, delay: opts.UIDebounce},
		text:     lane{name: LaneText, delay: opts.TextDebounce},
		playback: lane{name: LanePlayback, delay: opts.PlaybackDebounce},
	}
}

// UI schedules a write of the complete merged prefs, replacing any pending
// one, and stores them in the local cache right away.
func (q *Queue) UI(prefs snapshot.UIPrefs) {
	if q.cache != nil {
		q.cache.SavePrefs(prefs)
	}
	q.debounce(&q.ui, snapshot.PrefsPatch(prefs))
}

// Text schedules a results text write. Updates are ignored while an
// operation is active. It reports whether the update was queued.
func (q *Queue) Text(text string, operationActive bool) bool {
	if operationActive {
		return false
	}
	q.debounce(&q.text, snapshot.TextPatch(text))
	return true
}

// Playback schedules a position write for key. While a write is pending,
// further updates are dropped. It reports whether a write was scheduled.
func (q *Queue) Playback(key string, position float64) bool {
	if key == "" || math.IsNaN(position) || math.IsInf(position, 0) {
		return false
	}
	if q.playback.timer != nil {
		return false
	}
	q.playback.pending = snapshot.PlaybackPatch(key, position)
	q.playback.timer = q.sched.AfterFunc(q.playback.delay, func() { q.fire(&q.playback) })
	return true
}

// FlushPlayback writes position immediately, replacing any pending playback
// write.
func (q *Queue) FlushPlayback(key string, position float64) bool {
	if key == "" || math.IsNaN(position) || math.IsInf(position, 0) {
		return false
	}
	q.playback.stop()
	q.playback.pending = snapshot.Patch{}
	q.send(LanePlayback, snapshot.PlaybackPatch(key, position))
	return true
}

// Flush fires every pending lane now.
func (q *Queue) Flush() {
	for _, l := range []*lane{&q.ui, &q.text, &q.playback} {
		if l.stop() {
			q.fire(l)
		}
	}
}

// Pending reports whether name has a write waiting for its timer.
func (q *Queue) Pending(name Lane) bool {
	switch name {
	case LaneUI:
		return q.ui.timer != nil
	case LaneText:
		return q.text.timer != nil
	case LanePlayback:
		return q.playback.timer != nil
	default:
		return false
	}
}

// Unsent merges the ui and results text edits still waiting for their
// timers. Playback is excluded; the player owns that value.
func (q *Queue) Unsent() snapshot.Patch {
	var out snapshot.Patch
	if q.ui.timer != nil {
		out = out.Merge(q.ui.pending)
	}
	if q.text.timer != nil {
		out = out.Merge(q.text.pending)
	}
	return out
}

func (q *Queue) debounce(l *lane, patch snapshot.Patch) {
	l.stop()
	l.pending = patch
	l.timer = q.sched.AfterFunc(l.delay, func() { q.fire(l) })
}

func (q *Queue) fire(l *lane) {
	l.timer = nil
	patch := l.pending
	l.pending = snapshot.Patch{}
	if patch.Empty() {
		return
	}
	q.send(l.name, patch)
}

func (q *Queue) send(name Lane, patch snapshot.Patch) {
	writer, timeout, logger := q.writer, q.opts.Timeout, q.logger
	q.sched.Spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := writer.PatchState(ctx, patch); err != nil {
			if api.IsUnavailable(err) {
				logger.Debug("state write skipped; server unreachable",
					logging.String(logging.FieldLane, string(name)),
					logging.Error(err))
				return
			}
			logging.WarnWithContext(logger, "state write failed", "writeback_failed",
				logging.String(logging.FieldLane, string(name)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the next successful edit will overwrite it"),
				logging.String(logging.FieldImpact, "local edit not saved on the server"))
			return
		}
		logger.Debug("state write sent", logging.String(logging.FieldLane, string(name)))
	})
}
