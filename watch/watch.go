package watch

import (
	"strings"

	"github.com/delaneyj/tickwatch/diag"
	"github.com/delaneyj/tickwatch/reactive"
	"github.com/delaneyj/tickwatch/scheduler"
)

// OnInvalidate registers a cleanup run before the next callback and when the
// watcher stops.
type OnInvalidate func(fn func())

type Callback func(value, oldValue any, onInvalidate OnInvalidate) error

type EffectFunc func(onInvalidate OnInvalidate) error

// StopHandle disconnects a watcher. Calling it again does nothing.
type StopHandle func()

// Getter adapts a typed function into a watch source.
func Getter[T any](fn func() T) func() any {
	return func() any { return fn() }
}

// Watch calls cb when source changes. source may be a ref or computed, a
// reactive Object or List, a func() any getter, or a []any of those.
func Watch(rt *Runtime, source any, cb Callback, opts ...Option) StopHandle {
	if cb == nil {
		rt.Report.Warn("watch without a callback only runs the source; use WatchEffect instead")
	}
	return doWatch(rt, source, cb, buildOptions(opts))
}

// WatchEffect runs effect now and again whenever anything it read changes.
func WatchEffect(rt *Runtime, effect EffectFunc, opts ...Option) StopHandle {
	o := buildOptions(opts)
	if o.immediateSet {
		rt.Report.Warn(`watch "immediate" option is only respected by Watch`)
	}
	if o.deepSet {
		rt.Report.Warn(`watch "deep" option is only respected by Watch`)
	}
	var source any = effect
	if effect == nil {
		source = nil
	}
	return doWatch(rt, source, nil, o)
}

// WatchPath watches a dotted path of keys through nested objects, like "user.address.city".
func WatchPath(rt *Runtime, obj *reactive.Object, path string, cb Callback, opts ...Option) StopHandle {
	segments := strings.Split(path, ".")
	getter := func() any {
		var cur any = obj
		for _, seg := range segments {
			o, ok := cur.(*reactive.Object)
			if !ok {
				return nil
			}
			cur = o.Get(seg)
		}
		return cur
	}
	return Watch(rt, getter, cb, opts...)
}

type watcher struct {
	rt    *Runtime
	owner Owner
	cb    Callback
	opts  options
	res   resolved

	runner  *reactive.Effect
	job     *scheduler.Job
	cleanup func()

	oldValue any
	initial  bool
}

func doWatch(rt *Runtime, source any, cb Callback, o options) StopHandle {
	w := &watcher{
		rt:      rt,
		owner:   o.owner,
		cb:      cb,
		opts:    o,
		initial: true,
	}
	w.res = resolve(w, source)
	if w.res.deep {
		w.opts.deep = true
	}

	getter := w.res.getter
	if cb != nil && w.opts.deep {
		base := getter
		getter = func() any { return Traverse(base()) }
	}

	w.job = scheduler.NewJob(w.run).SetAllowRecurse(cb != nil)
	if w.owner != nil {
		w.job.WithOwner(w.owner).WithID(w.owner.UID())
	}

	w.runner = rt.System.NewEffect(getter, reactive.EffectOptions{
		Lazy:      true,
		Scheduler: w.schedule,
		OnTrack:   o.onTrack,
		OnTrigger: o.onTrigger,
	})
	if w.owner != nil {
		w.owner.RecordEffect(w.runner)
	}

	switch {
	case cb != nil && w.opts.immediate:
		w.run()
	case cb != nil:
		w.oldValue = w.runner.Run()
		w.initial = false
	case w.opts.flush == FlushPost:
		queuePostRenderEffect(rt.Queue, w.owner, w.job)
	default:
		w.runner.Run()
	}

	return w.stop
}

func (w *watcher) schedule() {
	switch w.opts.flush {
	case FlushSync:
		w.run()
	case FlushPost:
		queuePostRenderEffect(w.rt.Queue, w.owner, w.job)
	default:
		if w.owner == nil || w.owner.IsMounted() {
			w.rt.Queue.QueuePreFlushCb(w.job)
			return
		}
		// Before the first mount a pre watcher runs right away.
		w.run()
	}
}

func (w *watcher) run() {
	if !w.runner.Active() {
		return
	}
	if w.cb == nil {
		w.runner.Run()
		return
	}

	value := w.runner.Run()
	if !w.opts.deep && !w.res.forceTrigger && !w.changed(value) {
		return
	}
	w.runCleanup()

	var old any
	if !w.initial {
		old = w.oldValue
	}
	w.rt.Report.CallErr(w.owner, diag.WatchCallback, func() error {
		return w.cb(value, old, w.onInvalidate)
	})
	w.oldValue = value
	w.initial = false
}

func (w *watcher) changed(value any) bool {
	if w.initial {
		return true
	}
	if !w.res.multi {
		return reactive.HasChanged(value, w.oldValue)
	}
	values, _ := value.([]any)
	olds, _ := w.oldValue.([]any)
	for i, v := range values {
		var old any
		if i < len(olds) {
			old = olds[i]
		}
		if reactive.HasChanged(v, old) {
			return true
		}
	}
	return false
}

func (w *watcher) onInvalidate(fn func()) {
	w.cleanup = func() {
		w.rt.Report.Call(w.owner, diag.WatchCleanup, fn)
	}
	w.runner.SetOnStop(w.cleanup)
}

func (w *watcher) runCleanup() {
	if w.cleanup != nil {
		w.cleanup()
	}
}

func (w *watcher) callGetter(fn func() any) any {
	return w.rt.Report.CallValue(w.owner, diag.WatchGetter, fn)
}

func (w *watcher) stop() {
	w.runner.Stop()
	w.job.SetActive(false)
	if w.owner != nil {
		w.owner.RemoveEffect(w.runner)
	}
}
