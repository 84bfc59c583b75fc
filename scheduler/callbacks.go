package scheduler

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// QueuePreFlushCb queues cb to run before the main queue of the next flush pass.
func (s *Scheduler) QueuePreFlushCb(cb *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingPre = s.queueCb(cb, s.activePre, s.pendingPre, s.preIndex)
}

// QueuePostFlushCb queues cb to run after the main queue of the current pass.
func (s *Scheduler) QueuePostFlushCb(cb *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingPost = s.queueCb(cb, s.activePost, s.pendingPost, s.postIndex)
}

// QueuePostFlushCbs queues a batch of callbacks produced by a single trigger. The
// batch is unique at its source so it skips deduplication.
func (s *Scheduler) QueuePostFlushCbs(cbs []*Job) {
	if len(cbs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingPost = append(s.pendingPost, cbs...)
	s.queueFlush()
}

func (s *Scheduler) queueCb(cb *Job, active, pending []*Job, index int) []*Job {
	start := index
	if cb.allowRecurse {
		start++
	}
	if active == nil || !containsFrom(active, cb, start) {
		pending = append(pending, cb)
	}
	s.queueFlush()
	return pending
}

// FlushPreFlushCbs drains pre-flush callbacks immediately. While it runs, parent
// cannot be re-queued into the main queue. Outside a flush it gets its own
// recursion accounting.
func (s *Scheduler) FlushPreFlushCbs(parent *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := s.seen
	if seen == nil {
		seen = countMap{}
	}
	s.flushPreFlushCbs(seen, parent)
}

// FlushPostFlushCbs drains post-flush callbacks immediately. Called from inside a
// post-flush callback it appends to the running drain instead.
func (s *Scheduler) FlushPostFlushCbs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := s.seen
	if seen == nil {
		seen = countMap{}
	}
	s.flushPostFlushCbs(seen)
}

func (s *Scheduler) flushPreFlushCbs(seen countMap, parent *Job) {
	// Callbacks can queue more pre-flush work; keep going until none is pending.
	for len(s.pendingPre) > 0 {
		s.currentPreFlushParent = parent
		s.activePre = dedupe(s.pendingPre)
		clear(s.pendingPre)
		s.pendingPre = s.pendingPre[:0]

		for s.preIndex = 0; s.preIndex < len(s.activePre); s.preIndex++ {
			cb := s.activePre[s.preIndex]
			if !cb.Active() {
				s.emit(EventSkipInactive, cb)
				continue
			}
			if s.checkRecursiveUpdates(seen, cb) {
				continue
			}
			s.emit(EventPre, cb)
			s.stats.PreCbs++
			s.run(cb)
		}

		s.activePre = nil
		s.preIndex = 0
		s.currentPreFlushParent = nil
	}
}

func (s *Scheduler) flushPostFlushCbs(seen countMap) {
	if len(s.pendingPost) == 0 {
		return
	}
	deduped := dedupe(s.pendingPost)
	clear(s.pendingPost)
	s.pendingPost = s.pendingPost[:0]

	if s.activePost != nil {
		s.activePost = append(s.activePost, deduped...)
		return
	}

	s.activePost = deduped
	slices.SortStableFunc(s.activePost, compareJobs)

	for s.postIndex = 0; s.postIndex < len(s.activePost); s.postIndex++ {
		cb := s.activePost[s.postIndex]
		if !cb.Active() {
			s.emit(EventSkipInactive, cb)
			continue
		}
		if s.checkRecursiveUpdates(seen, cb) {
			continue
		}
		s.emit(EventPost, cb)
		s.stats.PostCbs++
		s.run(cb)
	}

	s.activePost = nil
	s.postIndex = 0
}

// dedupe copies jobs keeping the first occurrence of each. The result is never nil.
func dedupe(jobs []*Job) []*Job {
	seen := mapset.NewThreadUnsafeSet[*Job]()
	out := make([]*Job, 0, len(jobs))
	for _, j := range jobs {
		if seen.Add(j) {
			out = append(out, j)
		}
	}
	return out
}
