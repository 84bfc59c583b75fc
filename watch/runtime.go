// Package watch binds reactive sources to callbacks run through a scheduler.
package watch

import (
	"github.com/delaneyj/tickwatch/diag"
	"github.com/delaneyj/tickwatch/reactive"
	"github.com/delaneyj/tickwatch/scheduler"
)

// Queuer is the part of *scheduler.Scheduler watchers need.
type Queuer interface {
	QueuePreFlushCb(cb *scheduler.Job)
	QueuePostFlushCb(cb *scheduler.Job)
	QueuePostFlushCbs(cbs []*scheduler.Job)
}

var _ Queuer = (*scheduler.Scheduler)(nil)

// Runtime groups what every watcher shares. All reactive reads and writes go
// through one goroutine.
type Runtime struct {
	System *reactive.System
	Queue  Queuer
	Report *diag.Reporter
}

// NewRuntime wires a runtime. A nil report discards diagnostics.
func NewRuntime(sys *reactive.System, q Queuer, report *diag.Reporter) *Runtime {
	if report == nil {
		report = diag.Nop()
	}
	return &Runtime{System: sys, Queue: q, Report: report}
}
