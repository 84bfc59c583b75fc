package reactive

import "slices"

type EffectOptions struct {
	// Lazy skips the initial run.
	Lazy bool
	// Scheduler is called instead of Run when a dependency changes.
	Scheduler func()
	// AllowRecurse lets the effect be triggered by its own writes.
	AllowRecurse bool
	OnTrack      func(DebuggerEvent)
	OnTrigger    func(DebuggerEvent)
	OnStop       func()
}

// Effect runs fn while recording the reactive values it reads. When one of them
// changes the effect is scheduled again.
type Effect struct {
	sys *System
	id  uint64
	fn  func() any

	deps   []dep
	active bool

	allowRecurse bool
	scheduler    func()
	onTrack      func(DebuggerEvent)
	onTrigger    func(DebuggerEvent)
	onStop       func()
}

func (s *System) NewEffect(fn func() any, opts EffectOptions) *Effect {
	s.nextID++
	e := &Effect{
		sys:          s,
		id:           s.nextID,
		fn:           fn,
		active:       true,
		allowRecurse: opts.AllowRecurse,
		scheduler:    opts.Scheduler,
		onTrack:      opts.OnTrack,
		onTrigger:    opts.OnTrigger,
		onStop:       opts.OnStop,
	}
	if !opts.Lazy {
		e.Run()
	}
	return e
}

// Run re-collects dependencies and returns fn's result. A stopped effect with a
// scheduler does nothing; one without still calls fn, untracked.
func (e *Effect) Run() any {
	if !e.active {
		if e.scheduler != nil {
			return nil
		}
		return e.fn()
	}
	s := e.sys
	if slices.Contains(s.stack, e) {
		return nil
	}

	e.cleanup()
	s.enableTracking()
	s.stack = append(s.stack, e)
	defer func() {
		s.stack = s.stack[:len(s.stack)-1]
		s.ResumeTracking()
	}()
	return e.fn()
}

func (e *Effect) cleanup() {
	for _, d := range e.deps {
		d.Remove(e)
	}
	clear(e.deps)
	e.deps = e.deps[:0]
}

// Stop disconnects the effect from everything it tracks. It is safe to call more
// than once.
func (e *Effect) Stop() {
	if !e.active {
		return
	}
	e.cleanup()
	if e.onStop != nil {
		e.onStop()
	}
	e.active = false
}

// ID grows with creation order.
func (e *Effect) ID() uint64 {
	return e.id
}

func (e *Effect) Active() bool {
	return e.active
}

func (e *Effect) SetOnStop(fn func()) {
	e.onStop = fn
}

// DepCount is the number of reactive values the last run read.
func (e *Effect) DepCount() int {
	return len(e.deps)
}
