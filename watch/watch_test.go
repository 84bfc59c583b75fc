package watch_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaneyj/tickwatch/diag"
	"github.com/delaneyj/tickwatch/reactive"
	"github.com/delaneyj/tickwatch/scheduler"
	"github.com/delaneyj/tickwatch/watch"
)

type env struct {
	rt     *watch.Runtime
	sys    *reactive.System
	sched  *scheduler.Scheduler
	ticker *scheduler.ManualTicker
}

func newEnv(opts ...diag.Option) *env {
	ticker := scheduler.NewManualTicker()
	report := diag.New(opts...)
	sched := scheduler.New(ticker, scheduler.WithReporter(report))
	sys := reactive.NewSystem()
	return &env{
		rt:     watch.NewRuntime(sys, sched, report),
		sys:    sys,
		sched:  sched,
		ticker: ticker,
	}
}

type call struct {
	value, old any
}

func recorder(calls *[]call) watch.Callback {
	return func(value, old any, _ watch.OnInvalidate) error {
		*calls = append(*calls, call{value, old})
		return nil
	}
}

// should not call back on registration and skip writes that change nothing
func TestWatchRef(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 1)

	var calls []call
	watch.Watch(e.rt, r, recorder(&calls))
	assert.Empty(t, calls)

	r.Set(2)
	assert.Empty(t, calls, "pre flush never runs inside the write")
	e.ticker.Drain()
	require.Equal(t, []call{{2, 1}}, calls)

	r.Set(2)
	e.ticker.Drain()
	assert.Len(t, calls, 1)
}

// should fire once for several writes before the tick
func TestWatchCoalescesWrites(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 0)

	var calls []call
	watch.Watch(e.rt, r, recorder(&calls))
	r.Set(1)
	r.Set(2)
	r.Set(3)
	assert.Equal(t, 1, e.ticker.Pending())
	e.ticker.Drain()
	assert.Equal(t, []call{{3, 0}}, calls)
}

// should fire immediately for multiple sources with a nil old value
func TestWatchMultiImmediate(t *testing.T) {
	e := newEnv()
	a := reactive.NewRef(e.sys, 1)
	b := reactive.NewRef(e.sys, "x")

	var calls []call
	watch.Watch(e.rt, []any{a, b}, recorder(&calls), watch.Immediate())
	require.Len(t, calls, 1)
	assert.Equal(t, []any{1, "x"}, calls[0].value)
	assert.Nil(t, calls[0].old)

	b.Set("y")
	e.ticker.Drain()
	require.Len(t, calls, 2)
	assert.Equal(t, []any{1, "y"}, calls[1].value)
	assert.Equal(t, []any{1, "x"}, calls[1].old)
}

// should resolve getters inside multiple sources
func TestWatchMultiGetter(t *testing.T) {
	e := newEnv()
	a := reactive.NewRef(e.sys, 2)

	var calls []call
	watch.Watch(e.rt, []any{watch.Getter(func() int { return a.Value() * 10 })}, recorder(&calls))
	a.Set(3)
	e.ticker.Drain()
	require.Len(t, calls, 1)
	assert.Equal(t, []any{30}, calls[0].value)
	assert.Equal(t, []any{20}, calls[0].old)
}

// should run sync watchers inside the triggering write
func TestWatchSync(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 0)

	var calls []call
	watch.Watch(e.rt, r, recorder(&calls), watch.WithFlush(watch.FlushSync))
	r.Set(1)
	assert.Equal(t, []call{{1, 0}}, calls)
	r.Set(2)
	assert.Len(t, calls, 2)
	assert.Zero(t, e.ticker.Pending())
}

// should run pre watchers synchronously until the owner mounts
func TestWatchPreBeforeMount(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 0)
	owner := watch.NewInstance("Counter")

	var calls []call
	watch.Watch(e.rt, r, recorder(&calls), watch.WithOwner(owner))
	r.Set(1)
	assert.Len(t, calls, 1)

	owner.Mount()
	r.Set(2)
	assert.Len(t, calls, 1)
	e.ticker.Drain()
	assert.Len(t, calls, 2)
}

// should run pre watchers before main jobs and post watchers after them
func TestWatchFlushOrder(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 0)

	var order []string
	watch.Watch(e.rt, r, func(any, any, watch.OnInvalidate) error {
		order = append(order, "post")
		return nil
	}, watch.WithFlush(watch.FlushPost))
	watch.Watch(e.rt, r, func(any, any, watch.OnInvalidate) error {
		order = append(order, "pre")
		return nil
	})

	r.Set(1)
	e.sched.QueueJob(scheduler.NewJob(func() { order = append(order, "job") }).WithID(1))
	e.ticker.Drain()
	assert.Equal(t, []string{"pre", "job", "post"}, order)
}

// should hold post watchers until the boundary resolves
func TestWatchPostBoundary(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 0)
	owner := watch.NewInstance("Async")
	boundary := watch.NewBoundary(e.sched)
	owner.SetBoundary(boundary)
	owner.Mount()

	var calls []call
	watch.Watch(e.rt, r, recorder(&calls), watch.WithOwner(owner), watch.WithFlush(watch.FlushPost))
	r.Set(1)
	e.ticker.Drain()
	assert.Empty(t, calls)
	assert.True(t, boundary.Pending())

	boundary.Resolve()
	e.ticker.Drain()
	assert.Equal(t, []call{{1, 0}}, calls)

	r.Set(2)
	e.ticker.Drain()
	assert.Len(t, calls, 2)
}

// should deep watch a cyclic structure once per leaf write
func TestWatchDeepCycle(t *testing.T) {
	e := newEnv()
	child := reactive.NewObject(e.sys, map[string]any{"v": 1})
	root := reactive.NewObject(e.sys, map[string]any{"child": child, "name": "root"})
	root.Set("self", root)
	child.Set("parent", root)

	var calls []call
	watch.Watch(e.rt, root, recorder(&calls))

	child.Set("v", 2)
	e.ticker.Drain()
	require.Len(t, calls, 1)
	assert.Same(t, root, calls[0].value)

	child.Set("v", 3)
	root.Set("name", "top")
	e.ticker.Drain()
	assert.Len(t, calls, 2)
}

type node struct {
	Label *reactive.Ref[string]
	Next  *node
	Tags  []string
	note  string
}

// should follow plain Go pointers when deep is set
func TestWatchDeepGetter(t *testing.T) {
	e := newEnv()
	label := reactive.NewRef(e.sys, "a")
	n := &node{Label: label, Tags: []string{"x"}, note: "unexported"}
	n.Next = n
	holder := reactive.NewShallowRef(e.sys, n)

	var plain, deep []call
	watch.Watch(e.rt, watch.Getter(func() *node { return holder.Value() }), recorder(&plain))
	watch.Watch(e.rt, watch.Getter(func() *node { return holder.Value() }), recorder(&deep), watch.Deep())

	label.Set("b")
	e.ticker.Drain()
	assert.Empty(t, plain)
	assert.Len(t, deep, 1)
}

// should force a shallow ref watcher on manual trigger
func TestWatchShallowRefTrigger(t *testing.T) {
	e := newEnv()
	items := []int{1}
	r := reactive.NewShallowRef(e.sys, items)

	var calls []call
	watch.Watch(e.rt, r, recorder(&calls))
	r.Peek()[0] = 2
	r.Trigger()
	e.ticker.Drain()
	assert.Len(t, calls, 1)
}

// should let a callback re-trigger its own source
func TestWatchSelfTrigger(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 0)

	var seen []int
	watch.Watch(e.rt, r, func(value, _ any, _ watch.OnInvalidate) error {
		v := value.(int)
		seen = append(seen, v)
		if v < 3 {
			r.Set(v + 1)
		}
		return nil
	})
	r.Set(1)
	e.ticker.Drain()
	assert.Equal(t, []int{1, 2, 3}, seen)
}

// should make stop idempotent and turn queued work inert
func TestWatchStop(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 0)
	owner := watch.NewInstance("Owner")
	owner.Mount()

	var calls []call
	stop := watch.Watch(e.rt, r, recorder(&calls), watch.WithOwner(owner))
	require.Equal(t, 1, owner.EffectCount())

	r.Set(1)
	stop()
	stop()
	e.ticker.Drain()
	assert.Empty(t, calls)
	assert.Zero(t, owner.EffectCount())

	r.Set(2)
	e.ticker.Drain()
	assert.Empty(t, calls)
}

// should stop every watcher of an unmounted owner
func TestUnmountStopsWatchers(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 0)
	owner := watch.NewInstance("Owner")
	owner.Mount()

	var calls []call
	runs := 0
	watch.Watch(e.rt, r, recorder(&calls), watch.WithOwner(owner))
	watch.WatchEffect(e.rt, func(watch.OnInvalidate) error {
		runs++
		r.Value()
		return nil
	}, watch.WithOwner(owner))
	require.Equal(t, 2, owner.EffectCount())

	owner.Unmount()
	assert.True(t, owner.IsUnmounted())
	r.Set(1)
	e.ticker.Drain()
	assert.Empty(t, calls)
	assert.Equal(t, 1, runs)
}

// should run cleanup before the next callback and on stop
func TestWatchInvalidate(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 0)

	var log []string
	stop := watch.Watch(e.rt, r, func(value, _ any, onInvalidate watch.OnInvalidate) error {
		v := value.(int)
		log = append(log, "cb")
		onInvalidate(func() { log = append(log, "cleanup") })
		if v == 2 {
			panic("callback failed")
		}
		return nil
	}, watch.WithFlush(watch.FlushSync))

	r.Set(1)
	r.Set(2)
	stop()
	assert.Equal(t, []string{"cb", "cleanup", "cb", "cleanup"}, log)
}

// should run effects now and again after their dependencies change
func TestWatchEffect(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 0)

	var log []string
	stop := watch.WatchEffect(e.rt, func(onInvalidate watch.OnInvalidate) error {
		log = append(log, "run")
		r.Value()
		onInvalidate(func() { log = append(log, "cleanup") })
		return nil
	})
	assert.Equal(t, []string{"run"}, log)

	r.Set(1)
	assert.Len(t, log, 1)
	e.ticker.Drain()
	assert.Equal(t, []string{"run", "cleanup", "run"}, log)

	stop()
	assert.Equal(t, []string{"run", "cleanup", "run", "cleanup"}, log)
}

// should defer the first run of a post effect to the flush
func TestWatchEffectPost(t *testing.T) {
	e := newEnv()
	runs := 0
	watch.WatchEffect(e.rt, func(watch.OnInvalidate) error {
		runs++
		return nil
	}, watch.WithFlush(watch.FlushPost))
	assert.Zero(t, runs)
	e.ticker.Drain()
	assert.Equal(t, 1, runs)
}

// should follow a dotted path through nested objects
func TestWatchPath(t *testing.T) {
	e := newEnv()
	user := reactive.NewObject(e.sys, map[string]any{"name": "ann"})
	state := reactive.NewObject(e.sys, map[string]any{"user": user})

	var calls []call
	watch.WatchPath(e.rt, state, "user.name", recorder(&calls))

	user.Set("name", "bob")
	e.ticker.Drain()
	require.Equal(t, []call{{"bob", "ann"}}, calls)

	state.Set("user", reactive.NewObject(e.sys, map[string]any{"name": "cy"}))
	e.ticker.Drain()
	require.Len(t, calls, 2)
	assert.Equal(t, call{"cy", "bob"}, calls[1])

	state.Set("user", 42)
	e.ticker.Drain()
	require.Len(t, calls, 3)
	assert.Nil(t, calls[2].value)
}

// should route callback errors and getter panics with their codes
func TestWatchErrors(t *testing.T) {
	var errs []*diag.Error
	e := newEnv(diag.WithHandler(func(err *diag.Error) { errs = append(errs, err) }))
	r := reactive.NewRef(e.sys, 0)
	owner := watch.NewInstance("Broken")
	owner.Mount()

	watch.Watch(e.rt, r, func(any, any, watch.OnInvalidate) error {
		return errors.New("boom")
	}, watch.WithOwner(owner))
	watch.Watch(e.rt, func() any {
		if r.Value() > 0 {
			panic("bad getter")
		}
		return 0
	}, func(any, any, watch.OnInvalidate) error { return nil })

	r.Set(1)
	e.ticker.Drain()
	require.Len(t, errs, 2)
	assert.Equal(t, diag.WatchCallback, errs[0].Code)
	assert.Same(t, owner, errs[0].Owner)
	assert.Equal(t, diag.WatchGetter, errs[1].Code)
	assert.ErrorIs(t, errs[1], diag.ErrPanic)
}

// should warn about invalid sources once and keep valid multi-source entries
func TestWatchInvalidSource(t *testing.T) {
	var buf bytes.Buffer
	e := newEnv(diag.WithLogger(zerolog.New(&buf)), diag.WithDev(true))
	r := reactive.NewRef(e.sys, 0)

	var calls []call
	stop := watch.Watch(e.rt, 42, recorder(&calls))
	stop()
	watch.Watch(e.rt, 7, recorder(&calls))
	assert.Equal(t, 1, strings.Count(buf.String(), "invalid watch source"))

	watch.Watch(e.rt, []any{r, "nope"}, recorder(&calls))
	assert.Equal(t, 2, strings.Count(buf.String(), "invalid watch source"))
	r.Set(1)
	e.ticker.Drain()
	require.Len(t, calls, 1)
	assert.Equal(t, []any{1, nil}, calls[0].value)
}

// should warn about options WatchEffect ignores
func TestWatchEffectOptionWarnings(t *testing.T) {
	var buf bytes.Buffer
	e := newEnv(diag.WithLogger(zerolog.New(&buf)), diag.WithDev(true))

	watch.WatchEffect(e.rt, func(watch.OnInvalidate) error { return nil }, watch.Immediate(), watch.Deep())
	assert.Contains(t, buf.String(), `immediate\" option`)
	assert.Contains(t, buf.String(), `deep\" option`)

	buf.Reset()
	watch.Watch(e.rt, func() any { return nil }, nil)
	assert.Contains(t, buf.String(), "use WatchEffect")
}

// should pass debugger events to OnTrack and OnTrigger
func TestWatchDebugHooks(t *testing.T) {
	e := newEnv()
	r := reactive.NewRef(e.sys, 0)

	var tracked, triggered int
	watch.Watch(e.rt, r, func(any, any, watch.OnInvalidate) error { return nil },
		watch.OnTrack(func(reactive.DebuggerEvent) { tracked++ }),
		watch.OnTrigger(func(reactive.DebuggerEvent) { triggered++ }),
	)
	assert.Equal(t, 1, tracked)
	r.Set(1)
	assert.Equal(t, 1, triggered)
}

// should track nested values through cycles and skip raw objects
func TestTraverse(t *testing.T) {
	sys := reactive.NewSystem()
	inner := reactive.NewRef(sys, 1)
	list := reactive.NewList(sys, inner)
	raw := reactive.NewObject(sys, map[string]any{"hidden": inner})
	raw.MarkRaw()
	m := map[string]any{"list": list}
	m["self"] = m

	runs := 0
	sys.NewEffect(func() any {
		runs++
		return watch.Traverse(m)
	}, reactive.EffectOptions{})
	inner.Set(2)
	assert.Equal(t, 2, runs)

	rawRuns := 0
	sys.NewEffect(func() any {
		rawRuns++
		return watch.Traverse(raw)
	}, reactive.EffectOptions{})
	inner.Set(3)
	assert.Equal(t, 1, rawRuns)
}
