package eventloop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"vidash/internal/logging"
)

// Timer is a scheduled callback that can be cancelled before it runs.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the timer
	// was still pending.
	Stop() bool
}

// Scheduler is the contract components use to run work on the owning loop.
// Every callback passed to Post, AfterFunc and Every runs on the loop
// goroutine, one at a time. Spawn runs blocking work elsewhere; that work must
// hand results back through Post.
type Scheduler interface {
	Now() time.Time
	Post(fn func())
	AfterFunc(d time.Duration, fn func()) Timer
	Every(d time.Duration, fn func()) Timer
	Spawn(fn func())
}

// Loop is a single-goroutine task queue. The queue is unbounded so tasks can
// post follow-up tasks without blocking.
type Loop struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	workers sync.WaitGroup
}

// New constructs an idle loop; call Run to start processing.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loop{
		logger: logging.NewComponentLogger(logger, "eventloop"),
		wake:   make(chan struct{}, 1),
	}
}

// Now returns the wall clock.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post enqueues fn. Tasks posted after the loop stopped are dropped.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes tasks until ctx is cancelled, then drops the remaining queue
// and waits for spawned workers to return.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
		l.workers.Wait()
	}()

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, task := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.runTask(task)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked",
				logging.String(logging.FieldEventType, "task_panic"),
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "task dropped; loop continues"))
		}
	}()
	task()
}

// AfterFunc schedules fn on the loop after d. Stopping the timer from the loop
// guarantees fn will not run, even if the clock already fired.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.cancelled.Load() {
				return
			}
			lt.fired.Store(true)
			fn()
		})
	})
	return lt
}

// Every schedules fn on the loop every d until stopped.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	rt := &repeatTimer{}
	var schedule func()
	schedule = func() {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		if rt.stopped {
			return
		}
		rt.current = l.AfterFunc(d, func() {
			defer schedule()
			fn()
		})
	}
	schedule()
	return rt
}

// Spawn runs blocking work on its own goroutine. Run waits for spawned work
// before returning.
func (l *Loop) Spawn(fn func()) {
	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		fn()
	}()
}

type loopTimer struct {
	timer     *time.Timer
	cancelled atomic.Bool
	fired     atomic.Bool
}

func (t *loopTimer) Stop() bool {
	if t.fired.Load() || t.cancelled.Swap(true) {
		return false
	}
	t.timer.Stop()
	return true
}

type repeatTimer struct {
	mu      sync.Mutex
	stopped bool
	current Timer
}

func (t *repeatTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	if t.current != nil {
		t.current.Stop()
	}
	return true
}
