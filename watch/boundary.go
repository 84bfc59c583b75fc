package watch

import (
	"sync"

	"github.com/delaneyj/tickwatch/scheduler"
)

// Boundary holds back post-flush work for a subtree that is still waiting on async
// dependencies.
type Boundary struct {
	mu      sync.Mutex
	queue   Queuer
	pending bool
	effects []*scheduler.Job
}

// NewBoundary returns a pending boundary.
func NewBoundary(q Queuer) *Boundary {
	return &Boundary{queue: q, pending: true}
}

func (b *Boundary) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Queue buffers job while the boundary is pending, otherwise it goes straight to
// the post-flush queue.
func (b *Boundary) Queue(job *scheduler.Job) {
	b.mu.Lock()
	if b.pending {
		b.effects = append(b.effects, job)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.queue.QueuePostFlushCb(job)
}

// Resolve releases the buffered jobs as one post-flush batch.
func (b *Boundary) Resolve() {
	b.mu.Lock()
	if !b.pending {
		b.mu.Unlock()
		return
	}
	b.pending = false
	effects := b.effects
	b.effects = nil
	b.mu.Unlock()
	b.queue.QueuePostFlushCbs(effects)
}

func queuePostRenderEffect(q Queuer, owner Owner, job *scheduler.Job) {
	if owner != nil {
		if b := owner.Boundary(); b != nil {
			b.Queue(job)
			return
		}
	}
	q.QueuePostFlushCb(job)
}
