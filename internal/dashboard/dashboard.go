package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vidash/internal/api"
	"vidash/internal/config"
	"vidash/internal/eventloop"
	"vidash/internal/localcache"
	"vidash/internal/logging"
	"vidash/internal/media"
	"vidash/internal/overlay"
	"vidash/internal/reconcile"
	"vidash/internal/snapshot"
	"vidash/internal/syncchan"
	"vidash/internal/writeback"
)

// ErrInvalidInput marks intents rejected locally before any request.
var ErrInvalidInput = errors.New("invalid input")

// Client is the server surface the dashboard uses.
type Client interface {
	syncchan.Source
	writeback.Writer
	media.Prober
	StartProcess(ctx context.Context, settings snapshot.Settings) error
	CancelProcess(ctx context.Context) error
	ResetState(ctx context.Context, clearEvents bool) error
	ClearVideo(ctx context.Context) error
	ClearProtocol(ctx context.Context) error
	Download(ctx context.Context, req api.DownloadRequest) error
	CheckUpload(kind api.UploadKind, path string) (int64, error)
	Upload(ctx context.Context, kind api.UploadKind, path string, progress api.ProgressFunc) error
	ResolveURL(path string) string
}

// Observer receives every published View on the loop goroutine.
type Observer func(reconcile.View)

// Options wires a Dashboard. Config and Client are required; everything else
// has a default built from Config.
type Options struct {
	Config    *config.Config
	Client    Client
	Cache     *localcache.Cache
	Scheduler eventloop.Scheduler
	Player    media.Player
	Surface   overlay.Surface
	Observer  Observer
	Logger    *slog.Logger
}

// Dashboard is the loop-owned application state.
type Dashboard struct {
	cfg    *config.Config
	client Client
	cache  *localcache.Cache
	sched  eventloop.Scheduler
	loop   *eventloop.Loop
	logger *slog.Logger

	channel  *syncchan.Channel
	queue    *writeback.Queue
	player   media.Player
	resolver *media.Resolver
	overlay  *overlay.Renderer
	surface  overlay.Surface
	rec      *reconcile.Reconciler
	observer Observer

	current     snapshot.Snapshot
	hasSnapshot bool
	cachedPrefs snapshot.UIPrefs
	view        reconcile.View
	uploading   bool
}

// New assembles the runtime. It does not start any I/O.
func New(opts Options) (*Dashboard, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("dashboard: config is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("dashboard: client is required")
	}
	logger := logging.NewComponentLogger(opts.Logger, "dashboard")
	d := &Dashboard{
		cfg:      opts.Config,
		client:   opts.Client,
		cache:    opts.Cache,
		sched:    opts.Scheduler,
		logger:   logger,
		observer: opts.Observer,
	}
	if d.cache == nil {
		d.cache = localcache.Open("", opts.Logger)
	}
	if d.sched == nil {
		d.loop = eventloop.New(opts.Logger)
		d.sched = d.loop
	}

	d.player = opts.Player
	if d.player == nil {
		d.player = media.NewHeadlessPlayer(d.sched, d.client, media.HeadlessOptions{
			TimeUpdate:   d.cfg.TimeUpdate(),
			ProbeTimeout: d.cfg.FetchTimeout(),
			Bounds:       media.Bounds{Width: d.cfg.Player.SurfaceCols, Height: d.cfg.Player.SurfaceRows},
			Logger:       opts.Logger,
		})
	}
	d.surface = opts.Surface
	if d.surface == nil {
		d.surface = overlay.NewGridSurface(d.cfg.Player.SurfaceCols, d.cfg.Player.SurfaceRows)
	}

	d.resolver = media.NewResolver(d.player, media.Options{URLFor: d.client.ResolveURL, Logger: opts.Logger})
	d.overlay = overlay.NewRenderer(d.surface, d.player, opts.Logger)
	d.rec = reconcile.New(reconcile.Options{
		Media:   d.resolver,
		Overlay: d.overlay,
		Sizes:   d.cache,
		Now:     d.sched.Now,
		Logger:  opts.Logger,
	})
	d.queue = writeback.New(d.sched, d.client, writeback.OptionsFromConfig(d.cfg, d.cache, opts.Logger))
	d.channel = syncchan.New(d.sched, d.client, d, syncchan.OptionsFromConfig(d.cfg, opts.Logger))
	d.player.SetEventHandler(d.handlePlayerEvent)
	d.view = d.rec.View()
	return d, nil
}

// Run starts the runtime on its own loop and blocks until ctx ends, then
// flushes pending writes and stops. It fails when the dashboard was built
// with an external scheduler.
func (d *Dashboard) Run(ctx context.Context) error {
	if d.loop == nil {
		return fmt.Errorf("dashboard: Run requires the built-in loop")
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.loop.Post(func() { d.Start(loopCtx) })
	done := make(chan error, 1)
	go func() { done <- d.loop.Run(loopCtx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := d.loop.Do(shutdownCtx, d.Shutdown); err != nil {
		d.logger.Warn("shutdown did not finish", logging.Error(err))
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Submit runs fn on the loop. It is safe to call from any goroutine.
func (d *Dashboard) Submit(fn func(*Dashboard)) {
	d.sched.Post(func() { fn(d) })
}

// Start shows cached layout preferences and starts synchronization.
func (d *Dashboard) Start(ctx context.Context) {
	if prefs, ok := d.cache.LoadPrefs(); ok {
		d.cachedPrefs = prefs
		d.publish(d.rec.ApplyPrefs(prefs))
	}
	d.logger.Info("dashboard starting",
		logging.String("server", d.cfg.Server.BaseURL),
		logging.Bool("cache", d.cache.Enabled()))
	d.channel.Start(ctx)
}

// Shutdown saves the playback position, flushes every write-back lane and
// stops synchronization.
func (d *Dashboard) Shutdown() {
	d.Unload()
	d.queue.Flush()
	d.channel.Stop()
}

// ApplySnapshot makes snap current and renders it. Edits still waiting in
// the write-back queue are laid over snap so a push that predates them does
// not revert the view or the prefs cache.
func (d *Dashboard) ApplySnapshot(snap snapshot.Snapshot) {
	if unsent := d.queue.Unsent(); !unsent.Empty() {
		snap = snap.WithPatch(unsent)
	}
	d.current = snap
	d.hasSnapshot = true
	view := d.rec.Render(snap)
	if prefs := snap.Prefs(); prefs != d.cachedPrefs {
		d.cachedPrefs = prefs
		d.cache.SavePrefs(prefs)
	}
	d.publish(view)
}

// StateStuck shows the stuck warning until the next render.
func (d *Dashboard) StateStuck(failures int) {
	d.publish(d.rec.Notice(reconcile.StuckText))
}

func (d *Dashboard) handlePlayerEvent(evt media.Event) {
	d.resolver.HandleEvent(evt)
	switch evt.Kind {
	case media.EventTimeUpdate:
		d.queue.Playback(d.resolver.MediaKey(), d.player.CurrentTime())
	case media.EventPause:
		d.queue.FlushPlayback(d.resolver.MediaKey(), d.player.CurrentTime())
	}
	d.publish(d.rec.Redraw())
}

func (d *Dashboard) publish(view reconcile.View) {
	d.view = view
	if d.observer != nil {
		d.observer(view)
	}
}

// View returns the last published View.
func (d *Dashboard) View() reconcile.View {
	return d.view
}

// Current returns the current snapshot.
func (d *Dashboard) Current() (snapshot.Snapshot, bool) {
	return d.current, d.hasSnapshot
}

// SyncState reports the synchronization channel state.
func (d *Dashboard) SyncState() syncchan.State {
	return d.channel.State()
}

// Surface returns the overlay surface.
func (d *Dashboard) Surface() overlay.Surface {
	return d.surface
}

// Player returns the attached player.
func (d *Dashboard) Player() media.Player {
	return d.player
}
