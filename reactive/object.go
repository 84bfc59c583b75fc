package reactive

import (
	"maps"
	"slices"
)

type reactiveValue interface {
	markReactive()
}

// IsReactive reports whether v is a reactive container (Object or List).
func IsReactive(v any) bool {
	_, ok := v.(reactiveValue)
	return ok
}

const iterateKey = "<iterate>"

// Object is a keyed reactive container. Reads are tracked per key; listing keys
// tracks additions and deletions.
type Object struct {
	sys    *System
	keys   []string
	fields map[string]any
	deps   map[string]dep
	iter   dep
	raw    bool
}

// NewObject copies init; its keys are ordered alphabetically, later keys in
// insertion order.
func NewObject(sys *System, init map[string]any) *Object {
	o := &Object{
		sys:    sys,
		fields: make(map[string]any, len(init)),
		deps:   map[string]dep{},
		iter:   newDep(),
	}
	for _, k := range slices.Sorted(maps.Keys(init)) {
		o.keys = append(o.keys, k)
		o.fields[k] = init[k]
	}
	return o
}

func (o *Object) markReactive() {}

func (o *Object) dep(key string) dep {
	d, ok := o.deps[key]
	if !ok {
		d = newDep()
		o.deps[key] = d
	}
	return d
}

func (o *Object) Get(key string) any {
	o.sys.track(o, OpGet, key, o.dep(key))
	return o.fields[key]
}

func (o *Object) Has(key string) bool {
	o.sys.track(o, OpHas, key, o.dep(key))
	_, ok := o.fields[key]
	return ok
}

func (o *Object) Set(key string, value any) {
	old, had := o.fields[key]
	if !had {
		o.keys = append(o.keys, key)
		o.fields[key] = value
		o.sys.trigger(o, OpAdd, key, value, nil, o.deps[key], o.iter)
		return
	}
	if !HasChanged(old, value) {
		return
	}
	o.fields[key] = value
	o.sys.trigger(o, OpSet, key, value, old, o.deps[key])
}

func (o *Object) Delete(key string) {
	old, had := o.fields[key]
	if !had {
		return
	}
	delete(o.fields, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
	o.sys.trigger(o, OpDelete, key, nil, old, o.deps[key], o.iter)
}

func (o *Object) Keys() []string {
	o.sys.track(o, OpIterate, iterateKey, o.iter)
	return slices.Clone(o.keys)
}

func (o *Object) Len() int {
	o.sys.track(o, OpIterate, iterateKey, o.iter)
	return len(o.keys)
}

// MarkRaw excludes the object from deep traversal.
func (o *Object) MarkRaw() {
	o.raw = true
}

func (o *Object) IsRaw() bool {
	return o.raw
}

// Snapshot copies the fields without tracking.
func (o *Object) Snapshot() map[string]any {
	return maps.Clone(o.fields)
}

// List is an indexed reactive container.
type List struct {
	sys    *System
	items  []any
	deps   map[int]dep
	length dep
	raw    bool
}

func NewList(sys *System, items ...any) *List {
	return &List{
		sys:    sys,
		items:  slices.Clone(items),
		deps:   map[int]dep{},
		length: newDep(),
	}
}

func (l *List) markReactive() {}

func (l *List) dep(i int) dep {
	d, ok := l.deps[i]
	if !ok {
		d = newDep()
		l.deps[i] = d
	}
	return d
}

// Get returns nil for an index out of range, still tracking it.
func (l *List) Get(i int) any {
	l.sys.track(l, OpGet, i, l.dep(i))
	if i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// Set replaces item i. Setting index Len() appends; any other index out of range
// is ignored.
func (l *List) Set(i int, value any) {
	if i == len(l.items) {
		l.Append(value)
		return
	}
	if i < 0 || i > len(l.items) {
		return
	}
	old := l.items[i]
	if !HasChanged(old, value) {
		return
	}
	l.items[i] = value
	l.sys.trigger(l, OpSet, i, value, old, l.deps[i])
}

func (l *List) Append(values ...any) {
	if len(values) == 0 {
		return
	}
	start := len(l.items)
	l.items = append(l.items, values...)
	deps := []dep{l.length}
	for i := range values {
		deps = append(deps, l.deps[start+i])
	}
	l.sys.trigger(l, OpAdd, start, values, nil, deps...)
}

func (l *List) Len() int {
	l.sys.track(l, OpIterate, "length", l.length)
	return len(l.items)
}

func (l *List) Values() []any {
	l.sys.track(l, OpIterate, "length", l.length)
	for i := range l.items {
		l.sys.track(l, OpGet, i, l.dep(i))
	}
	return slices.Clone(l.items)
}

func (l *List) MarkRaw() {
	l.raw = true
}

func (l *List) IsRaw() bool {
	return l.raw
}
