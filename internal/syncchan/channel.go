package syncchan

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vidash/internal/api"
	"vidash/internal/config"
	"vidash/internal/eventloop"
	"vidash/internal/logging"
	"vidash/internal/snapshot"
)

// State is the channel's delivery mode.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateStreaming    State = "streaming"
	StatePolling      State = "polling"
)

// Source performs the network side of the channel. Both methods block and
// are only called from spawned workers.
type Source interface {
	FetchState(ctx context.Context) (snapshot.Snapshot, error)
	StreamState(ctx context.Context, onOpen func(), onEvent func(api.Event)) error
}

// Sink receives channel output on the loop goroutine.
type Sink interface {
	// ApplySnapshot is called with every successfully decoded snapshot.
	ApplySnapshot(snap snapshot.Snapshot)
	// StateStuck is called after each failed fetch once the consecutive
	// failure count reaches the configured threshold.
	StateStuck(failures int)
}

// Options holds the channel timings.
type Options struct {
	StreamRetry  time.Duration
	PollInterval time.Duration
	FetchTimeout time.Duration
	StuckAfter   int
	Logger       *slog.Logger
}

// OptionsFromConfig reads the [sync] section.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		StreamRetry:  cfg.StreamRetry(),
		PollInterval: cfg.PollInterval(),
		FetchTimeout: cfg.FetchTimeout(),
		StuckAfter:   cfg.Sync.StuckAfterFailures,
		Logger:       logger,
	}
}

func (o Options) withDefaults() Options {
	def := config.Default()
	if o.StreamRetry <= 0 {
		o.StreamRetry = def.StreamRetry()
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval()
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = def.FetchTimeout()
	}
	if o.StuckAfter <= 0 {
		o.StuckAfter = def.Sync.StuckAfterFailures
	}
	return o
}

// Channel delivers snapshots from a Source to a Sink.
type Channel struct {
	sched  eventloop.Scheduler
	src    Source
	sink   Sink
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state        State
	streamGen    uint64
	streamCancel context.CancelFunc
	retryTimer   eventloop.Timer
	pollTimer    eventloop.Timer
	fetching     bool
	failures     int
	stopped      bool
}

// New constructs an idle channel.
func New(sched eventloop.Scheduler, src Source, sink Sink, opts Options) *Channel {
	opts = opts.withDefaults()
	return &Channel{
		sched:  sched,
		src:    src,
		sink:   sink,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "syncchan"),
		state:  StateDisconnected,
	}
}

// State returns the current delivery mode.
func (c *Channel) State() State {
	return c.state
}

// Failures returns the consecutive fetch failure count.
func (c *Channel) Failures() int {
	return c.failures
}

// Start opens the push stream, fetches once immediately and arms the
// safety-net poll.
func (c *Channel) Start(ctx context.Context) {
	if c.ctx != nil {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.connect()
	c.pollTimer = c.sched.Every(c.opts.PollInterval, c.tick)
	c.fetch()
}

// Refresh requests a direct fetch, subject to the single in-flight rule.
func (c *Channel) Refresh() {
	if c.ctx == nil || c.stopped {
		return
	}
	c.fetch()
}

// Stop closes the stream, cancels timers and drops late results.
func (c *Channel) Stop() {
	if c.stopped {
		return
	}
	c.stopped = true
	if c.pollTimer != nil {
		c.pollTimer.Stop()
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.closeStream()
	if c.cancel != nil {
		c.cancel()
	}
	c.setState(StateDisconnected)
}

func (c *Channel) connect() {
	c.closeStream()
	c.streamGen++
	gen := c.streamGen
	streamCtx, cancel := context.WithCancel(c.ctx)
	c.streamCancel = cancel
	c.setState(StateConnecting)

	c.sched.Spawn(func() {
		err := c.src.StreamState(streamCtx,
			func() { c.sched.Post(func() { c.handleOpen(gen) }) },
			func(evt api.Event) { c.sched.Post(func() { c.handleEvent(gen, evt) }) },
		)
		c.sched.Post(func() { c.handleStreamEnd(gen, err) })
	})
}

func (c *Channel) closeStream() {
	if c.streamCancel != nil {
		c.streamCancel()
		c.streamCancel = nil
	}
}

func (c *Channel) handleOpen(gen uint64) {
	if c.stopped || gen != c.streamGen {
		return
	}
	c.setState(StateStreaming)
}

func (c *Channel) handleEvent(gen uint64, evt api.Event) {
	if c.stopped || gen != c.streamGen || evt.Name != "state" {
		return
	}
	data := evt.Data
	if data == "" {
		data = "{}"
	}
	snap, err := snapshot.Decode([]byte(data))
	if err != nil {
		c.logger.Debug("discarding malformed state event",
			logging.String(logging.FieldEventType, "state_event_malformed"),
			logging.Error(err))
		return
	}
	c.failures = 0
	c.sink.ApplySnapshot(snap)
}

func (c *Channel) handleStreamEnd(gen uint64, err error) {
	if c.stopped || gen != c.streamGen {
		return
	}
	c.closeStream()
	c.logger.Debug("state stream ended",
		logging.String(logging.FieldEventType, "state_stream_closed"),
		logging.Duration("retry_in", c.opts.StreamRetry),
		logging.Error(err))
	c.setState(StatePolling)
	c.scheduleReconnect()
}

func (c *Channel) scheduleReconnect() {
	if c.retryTimer != nil {
		return
	}
	c.retryTimer = c.sched.AfterFunc(c.opts.StreamRetry, func() {
		c.retryTimer = nil
		if c.stopped {
			return
		}
		c.connect()
	})
}

func (c *Channel) tick() {
	if c.stopped || c.state == StateStreaming {
		return
	}
	c.fetch()
}

func (c *Channel) fetch() {
	if c.fetching {
		return
	}
	c.fetching = true
	parent := c.ctx
	c.sched.Spawn(func() {
		ctx, cancel := context.WithTimeout(parent, c.opts.FetchTimeout)
		snap, err := c.src.FetchState(ctx)
		cancel()
		c.sched.Post(func() { c.handleFetch(snap, err) })
	})
}

func (c *Channel) handleFetch(snap snapshot.Snapshot, err error) {
	c.fetching = false
	if c.stopped {
		return
	}
	if err != nil {
		c.failures++
		attrs := []logging.Attr{
			logging.Error(err),
			logging.Int("failures", c.failures),
			logging.String(logging.FieldSyncState, string(c.state)),
		}
		if errors.Is(err, snapshot.ErrMalformed) {
			attrs = append(attrs, logging.String(logging.FieldErrorHint, "server returned an unreadable state payload"))
		} else if api.IsUnavailable(err) {
			attrs = append(attrs, logging.String(logging.FieldErrorHint, "check that the dashboard server is running"))
		}
		if c.failures >= c.opts.StuckAfter {
			logging.WarnWithContext(c.logger, "state fetch keeps failing", "state_fetch_stuck", attrs...)
			c.sink.StateStuck(c.failures)
			return
		}
		c.logger.Debug("state fetch failed", logging.Args(attrs...)...)
		return
	}
	c.failures = 0
	c.sink.ApplySnapshot(snap)
}

func (c *Channel) setState(next State) {
	if c.state == next {
		return
	}
	c.logger.Debug("sync state changed",
		logging.String("from", string(c.state)),
		logging.String(logging.FieldSyncState, string(next)))
	c.state = next
}
