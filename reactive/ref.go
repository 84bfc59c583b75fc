package reactive

// Readable is a boxed reactive value: refs and computeds.
type Readable interface {
	RefValue() any
	// IsShallow reports whether in-place mutations of the value go untracked.
	IsShallow() bool
}

func IsRef(v any) bool {
	_, ok := v.(Readable)
	return ok
}

type Ref[T any] struct {
	sys     *System
	value   T
	shallow bool
	dep     dep
}

func NewRef[T any](sys *System, value T) *Ref[T] {
	return &Ref[T]{sys: sys, value: value, dep: newDep()}
}

// NewShallowRef creates a ref whose watchers fire on every trigger, since changes
// inside the value are not tracked. Use Trigger after mutating it in place.
func NewShallowRef[T any](sys *System, value T) *Ref[T] {
	r := NewRef(sys, value)
	r.shallow = true
	return r
}

func (r *Ref[T]) Value() T {
	r.sys.track(r, OpGet, "value", r.dep)
	return r.value
}

// Peek reads the value without tracking it.
func (r *Ref[T]) Peek() T {
	return r.value
}

func (r *Ref[T]) Set(value T) {
	if !HasChanged(r.value, value) {
		return
	}
	old := r.value
	r.value = value
	r.sys.trigger(r, OpSet, "value", value, old, r.dep)
}

func (r *Ref[T]) Update(fn func(T) T) {
	r.Set(fn(r.value))
}

// Trigger notifies dependents without changing the value.
func (r *Ref[T]) Trigger() {
	r.sys.trigger(r, OpSet, "value", r.value, r.value, r.dep)
}

func (r *Ref[T]) RefValue() any {
	return r.Value()
}

func (r *Ref[T]) IsShallow() bool {
	return r.shallow
}

// Computed caches the result of getter until one of its dependencies changes.
type Computed[T any] struct {
	sys    *System
	value  T
	dirty  bool
	dep    dep
	effect *Effect
}

func NewComputed[T any](sys *System, getter func() T) *Computed[T] {
	c := &Computed[T]{sys: sys, dirty: true, dep: newDep()}
	c.effect = sys.NewEffect(func() any { return getter() }, EffectOptions{
		Lazy: true,
		Scheduler: func() {
			if !c.dirty {
				c.dirty = true
				sys.trigger(c, OpSet, "value", nil, nil, c.dep)
			}
		},
	})
	return c
}

func (c *Computed[T]) Value() T {
	if c.dirty {
		c.value, _ = c.effect.Run().(T)
		c.dirty = false
	}
	c.sys.track(c, OpGet, "value", c.dep)
	return c.value
}

func (c *Computed[T]) RefValue() any {
	return c.Value()
}

func (c *Computed[T]) IsShallow() bool {
	return false
}

// Stop detaches the computed from its dependencies; it keeps its last value.
func (c *Computed[T]) Stop() {
	c.effect.Stop()
}
