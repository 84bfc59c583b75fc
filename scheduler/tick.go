package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Ticker defers a task to the next tick. Each Schedule call runs its task exactly
// once, in FIFO order with the other tasks.
type Ticker interface {
	Schedule(task func())
}

// ManualTicker only runs tasks when told to. Tests and tools use it to make every
// flush happen at a known point.
type ManualTicker struct {
	mu    sync.Mutex
	tasks []func()
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{}
}

func (t *ManualTicker) Schedule(task func()) {
	t.mu.Lock()
	t.tasks = append(t.tasks, task)
	t.mu.Unlock()
}

func (t *ManualTicker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

// Step runs the oldest task. It reports false when there was nothing to run.
func (t *ManualTicker) Step() bool {
	t.mu.Lock()
	if len(t.tasks) == 0 {
		t.mu.Unlock()
		return false
	}
	task := t.tasks[0]
	t.tasks[0] = nil
	t.tasks = t.tasks[1:]
	t.mu.Unlock()

	task()
	return true
}

// Drain runs tasks until none are left, including the ones scheduled while
// draining, and returns how many ran.
func (t *ManualTicker) Drain() int {
	n := 0
	for t.Step() {
		n++
	}
	return n
}

var (
	ErrLoopRunning = errors.New("scheduler: loop is already running")
	ErrLoopStopped = errors.New("scheduler: loop is not running")
)

// Loop runs scheduled tasks on a single goroutine.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	running atomic.Bool
	stopped chan struct{}
}

func NewLoop() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

func (l *Loop) Schedule(task func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drains tasks until ctx is done. Tasks still queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer close(l.stopped)

	for {
		for {
			l.mu.Lock()
			if len(l.tasks) == 0 {
				l.mu.Unlock()
				break
			}
			batch := l.tasks
			l.tasks = nil
			l.mu.Unlock()

			for _, task := range batch {
				task()
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Do runs fn on the loop goroutine and waits for it. A panic in fn comes back as an
// error.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	if !l.running.Load() {
		return ErrLoopStopped
	}

	done := make(chan error, 1)
	l.Schedule(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("scheduler: task panicked: %v", r)
			}
		}()
		fn()
		done <- nil
	})

	select {
	case err := <-done:
		return err
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Completion fires once the flush it belongs to has settled.
type Completion struct {
	ticker Ticker

	mu       sync.Mutex
	done     chan struct{}
	resolved bool
	waiters  []func()
}

func newCompletion(t Ticker) *Completion {
	return &Completion{ticker: t, done: make(chan struct{})}
}

func resolvedCompletion(t Ticker) *Completion {
	c := newCompletion(t)
	c.resolved = true
	close(c.done)
	return c
}

func (c *Completion) Done() <-chan struct{} {
	return c.done
}

func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Then runs fn on a later tick once c has fired. The returned completion fires after
// fn returns.
func (c *Completion) Then(fn func()) *Completion {
	next := newCompletion(c.ticker)
	cont := func() {
		defer next.resolve()
		fn()
	}

	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		c.ticker.Schedule(cont)
		return next
	}
	c.waiters = append(c.waiters, cont)
	c.mu.Unlock()
	return next
}

func (c *Completion) resolve() {
	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return
	}
	c.resolved = true
	close(c.done)
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		c.ticker.Schedule(w)
	}
}
