package scheduler

import (
	"slices"
	"sync"

	"github.com/delaneyj/tickwatch/diag"
)

const DefaultRecursionLimit = 100

type EventKind int

const (
	EventFlushStart EventKind = iota
	EventPre
	EventJob
	EventPost
	EventSkipInactive
	EventSkipRecursion
	EventFlushEnd
)

func (k EventKind) String() string {
	switch k {
	case EventFlushStart:
		return "flush-start"
	case EventPre:
		return "pre"
	case EventJob:
		return "job"
	case EventPost:
		return "post"
	case EventSkipInactive:
		return "skip-inactive"
	case EventSkipRecursion:
		return "skip-recursion"
	case EventFlushEnd:
		return "flush-end"
	default:
		return "unknown"
	}
}

// Event is emitted to the trace hook. Job is nil for flush boundaries.
type Event struct {
	Kind EventKind
	Job  *Job
	Pass int
}

type Stats struct {
	Flushes int
	Passes  int
	Jobs    int
	PreCbs  int
	PostCbs int
	Skipped int
	Errors  int
}

type Option func(*Scheduler)

func WithReporter(r *diag.Reporter) Option {
	return func(s *Scheduler) { s.report = r }
}

func WithRecursionLimit(limit int) Option {
	return func(s *Scheduler) { s.limit = limit }
}

// WithTrace registers a hook called for every execution decision. The hook runs
// with the scheduler lock held and must not call back into the scheduler.
func WithTrace(fn func(Event)) Option {
	return func(s *Scheduler) { s.trace = fn }
}

// Scheduler holds the main job queue and the pre/post flush callback queues.
// Queue mutations are serialized by mu; the lock is released while a job body runs
// so jobs can schedule more work.
type Scheduler struct {
	mu     sync.Mutex
	ticker Ticker
	report *diag.Reporter
	limit  int
	trace  func(Event)

	isFlushing     bool
	isFlushPending bool
	pass           int

	queue       []*Job
	flushIndex  int
	runningMain bool

	pendingPre []*Job
	activePre  []*Job
	preIndex   int

	pendingPost []*Job
	activePost  []*Job
	postIndex   int

	currentPreFlushParent *Job
	current               *Completion
	seen                  countMap

	stats Stats
}

func New(t Ticker, opts ...Option) *Scheduler {
	s := &Scheduler{
		ticker: t,
		report: diag.Nop(),
		limit:  DefaultRecursionLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) IsFlushing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isFlushing
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// QueueJob adds job to the main queue unless it is already waiting there. While
// flushing, the job is placed in id order among the jobs that have not run yet.
func (s *Scheduler) QueueJob(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.flushIndex
	if s.runningMain && job.allowRecurse {
		start++
	}
	if (len(s.queue) == 0 || !containsFrom(s.queue, job, start)) && job != s.currentPreFlushParent {
		s.queue = slices.Insert(s.queue, s.findInsertionIndex(job), job)
		s.queueFlush()
	}
}

// findInsertionIndex binary searches the part of the queue after the cursor.
func (s *Scheduler) findInsertionIndex(job *Job) int {
	start := min(s.flushIndex+1, len(s.queue))
	end := len(s.queue)
	id := job.order()
	for start < end {
		middle := int(uint(start+end) >> 1)
		if s.queue[middle].order() < id {
			start = middle + 1
		} else {
			end = middle
		}
	}
	return start
}

// InvalidateJob drops job if the flush cursor has not reached it yet. Outside the
// main job loop nothing has been reached, so the job is dropped wherever it sits.
func (s *Scheduler) InvalidateJob(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.queue, job)
	if i < 0 {
		return
	}
	if !s.runningMain || i > s.flushIndex {
		s.queue = slices.Delete(s.queue, i, i+1)
	}
}

func (s *Scheduler) queueFlush() {
	if s.isFlushing || s.isFlushPending {
		return
	}
	s.isFlushPending = true
	c := newCompletion(s.ticker)
	s.current = c
	s.ticker.Schedule(func() {
		s.flushJobs()
		s.settle(c)
	})
}

func (s *Scheduler) settle(c *Completion) {
	s.mu.Lock()
	if s.current == c {
		s.current = nil
	}
	s.mu.Unlock()
	c.resolve()
}

// NextTick returns a completion that fires after the pending flush settles, or on
// the next tick when nothing is pending. fn, when given, runs first.
func (s *Scheduler) NextTick(fn func()) *Completion {
	s.mu.Lock()
	c := s.current
	s.mu.Unlock()
	if c == nil {
		c = resolvedCompletion(s.ticker)
	}
	if fn == nil {
		return c
	}
	return c.Then(func() {
		s.report.Call(nil, diag.Scheduler, fn)
	})
}

func (s *Scheduler) flushJobs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isFlushPending = false
	s.isFlushing = true
	s.seen = countMap{}
	s.stats.Flushes++

	// Passes repeat until work queued by jobs and callbacks has drained.
	for s.flushPass(s.seen) {
	}

	s.isFlushing = false
	s.seen = nil
	s.pass = 0
}

func (s *Scheduler) flushPass(seen countMap) (more bool) {
	s.pass++
	s.stats.Passes++
	s.emit(EventFlushStart, nil)

	s.flushPreFlushCbs(seen, nil)

	// Ids grow with creation order, so parents run before their children and a
	// child torn down by its parent can be skipped.
	slices.SortStableFunc(s.queue, compareJobs)

	s.runningMain = true
	for s.flushIndex = 0; s.flushIndex < len(s.queue); s.flushIndex++ {
		job := s.queue[s.flushIndex]
		if job == nil {
			continue
		}
		if !job.Active() {
			s.emit(EventSkipInactive, job)
			continue
		}
		if s.checkRecursiveUpdates(seen, job) {
			continue
		}
		s.emit(EventJob, job)
		s.stats.Jobs++
		s.run(job)
	}

	s.runningMain = false
	s.flushIndex = 0
	clear(s.queue)
	s.queue = s.queue[:0]

	s.flushPostFlushCbs(seen)
	s.emit(EventFlushEnd, nil)

	return len(s.queue) > 0 || len(s.pendingPre) > 0 || len(s.pendingPost) > 0
}

// run invokes job without holding the lock. Failures are reported and do not stop
// the flush.
func (s *Scheduler) run(job *Job) {
	s.mu.Unlock()
	defer s.mu.Lock()
	if !s.report.Call(job.owner, diag.Scheduler, job.Run) {
		s.mu.Lock()
		s.stats.Errors++
		s.mu.Unlock()
	}
}

func (s *Scheduler) emit(kind EventKind, job *Job) {
	if s.trace != nil {
		s.trace(Event{Kind: kind, Job: job, Pass: s.pass})
	}
}

func containsFrom(q []*Job, job *Job, start int) bool {
	if start >= len(q) {
		return false
	}
	return slices.Contains(q[start:], job)
}
