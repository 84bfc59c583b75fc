package scheduler

import (
	"cmp"
	"math"
	"sync/atomic"

	"github.com/delaneyj/tickwatch/diag"
)

// Job is a unit of deferred work. The same type is used for the main queue and for
// pre/post flush callbacks. Jobs are compared by pointer.
type Job struct {
	fn    func()
	id    int
	hasID bool
	name  string
	owner diag.Owner

	// allowRecurse lets a job re-queue itself while it is running.
	allowRecurse bool
	inactive     atomic.Bool
}

func NewJob(fn func()) *Job {
	return &Job{fn: fn}
}

// WithID sets the ordering key. Lower ids run first; jobs without one run last.
func (j *Job) WithID(id int) *Job {
	j.id = id
	j.hasID = true
	return j
}

func (j *Job) WithName(name string) *Job {
	j.name = name
	return j
}

// WithOwner attaches the owner reported when the job exceeds the recursion limit.
func (j *Job) WithOwner(o diag.Owner) *Job {
	j.owner = o
	return j
}

func (j *Job) SetAllowRecurse(allow bool) *Job {
	j.allowRecurse = allow
	return j
}

func (j *Job) SetActive(active bool) {
	j.inactive.Store(!active)
}

func (j *Job) Active() bool {
	return !j.inactive.Load()
}

func (j *Job) ID() (int, bool) {
	return j.id, j.hasID
}

func (j *Job) AllowRecurse() bool {
	return j.allowRecurse
}

func (j *Job) Owner() diag.Owner {
	return j.owner
}

func (j *Job) Name() string {
	if j.name != "" {
		return j.name
	}
	return diag.OwnerName(j.owner)
}

// Run invokes the job body directly, bypassing the queue.
func (j *Job) Run() {
	if j.fn != nil {
		j.fn()
	}
}

func (j *Job) order() int {
	if !j.hasID {
		return math.MaxInt
	}
	return j.id
}

func compareJobs(a, b *Job) int {
	return cmp.Compare(a.order(), b.order())
}
