package testsupport

import (
	"sync"
	"testing"
	"time"

	"vidash/internal/eventloop"
)

// ManualScheduler is an eventloop.Scheduler driven by the test: posted tasks
// run on RunPending, timers run on Advance. Spawned work runs on its own
// goroutine unless the scheduler was built with NewInlineScheduler.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	queue   []func()
	timers  []*manualTimer
	seq     uint64
	inline  bool
	spawned int
	wake    chan struct{}
	workers sync.WaitGroup
}

// NewManualScheduler starts the virtual clock at a fixed instant.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		now:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		wake: make(chan struct{}, 1),
	}
}

// NewInlineScheduler runs spawned work synchronously inside Spawn.
func NewInlineScheduler() *ManualScheduler {
	s := NewManualScheduler()
	s.inline = true
	return s
}

var _ eventloop.Scheduler = (*ManualScheduler)(nil)

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) Post(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) eventloop.Timer {
	return s.addTimer(d, 0, fn)
}

func (s *ManualScheduler) Every(d time.Duration, fn func()) eventloop.Timer {
	return s.addTimer(d, d, fn)
}

func (s *ManualScheduler) Spawn(fn func()) {
	s.mu.Lock()
	s.spawned++
	inline := s.inline
	s.mu.Unlock()
	if inline {
		fn()
		return
	}
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		fn()
	}()
}

// Spawned returns how many times Spawn has been called.
func (s *ManualScheduler) Spawned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawned
}

// PendingTimers counts timers that have neither fired nor been stopped.
func (s *ManualScheduler) PendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// RunPending runs queued tasks, including tasks they post, until the queue
// is empty. It returns the number of tasks run.
func (s *ManualScheduler) RunPending() int {
	ran := 0
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return ran
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		task()
		ran++
	}
}

// Advance moves the clock forward by d, firing due timers in order and
// draining the queue after each.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			break
		}
		s.now = next.due
		if next.period > 0 {
			next.due = next.due.Add(next.period)
		} else {
			s.removeLocked(next)
		}
		s.mu.Unlock()

		next.fn()
		s.RunPending()
	}
	s.RunPending()
}

// AwaitPosts blocks until at least n tasks are queued, failing the test
// after a few seconds. It does not run them.
func (s *ManualScheduler) AwaitPosts(t testing.TB, n int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		s.mu.Lock()
		queued := len(s.queue)
		s.mu.Unlock()
		if queued >= n {
			return
		}
		select {
		case <-s.wake:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %d posted tasks (have %d)", n, queued)
		}
	}
}

// WaitSpawned waits for every spawned goroutine to return.
func (s *ManualScheduler) WaitSpawned() {
	s.workers.Wait()
}

func (s *ManualScheduler) addTimer(d, period time.Duration, fn func()) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	timer := &manualTimer{s: s, due: s.now.Add(d), period: period, seq: s.seq, fn: fn}
	s.timers = append(s.timers, timer)
	return timer
}

func (s *ManualScheduler) nextDueLocked(target time.Time) *manualTimer {
	var next *manualTimer
	for _, timer := range s.timers {
		if timer.due.After(target) {
			continue
		}
		if next == nil || timer.due.Before(next.due) || (timer.due.Equal(next.due) && timer.seq < next.seq) {
			next = timer
		}
	}
	return next
}

func (s *ManualScheduler) removeLocked(timer *manualTimer) bool {
	for i, candidate := range s.timers {
		if candidate == timer {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return true
		}
	}
	return false
}

type manualTimer struct {
	s      *ManualScheduler
	due    time.Time
	period time.Duration
	seq    uint64
	fn     func()
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.removeLocked(t)
}
