package watch

import (
	"fmt"

	"github.com/delaneyj/tickwatch/diag"
	"github.com/delaneyj/tickwatch/reactive"
)

type sourceKind int

const (
	sourceInvalid sourceKind = iota
	sourceRef
	sourceReactive
	sourceMulti
	sourceGetter
	sourceEffect
)

func (k sourceKind) String() string {
	switch k {
	case sourceRef:
		return "ref"
	case sourceReactive:
		return "reactive"
	case sourceMulti:
		return "multi"
	case sourceGetter:
		return "getter"
	case sourceEffect:
		return "effect"
	default:
		return "invalid"
	}
}

// resolved is the getter a source turns into, with the flags change detection
// needs.
type resolved struct {
	getter       func() any
	multi        bool
	forceTrigger bool
	// deep is set when the source itself requires deep traversal.
	deep bool
}

type resolver func(w *watcher, source any) resolved

var resolvers = [...]resolver{
	sourceInvalid:  resolveInvalid,
	sourceRef:      resolveRef,
	sourceReactive: resolveReactive,
	sourceMulti:    resolveMulti,
	sourceGetter:   resolveGetter,
	sourceEffect:   resolveEffect,
}

func classify(source any, hasCallback bool) sourceKind {
	switch s := source.(type) {
	case nil:
		return sourceInvalid
	case reactive.Readable:
		return sourceRef
	case []any:
		return sourceMulti
	case EffectFunc, func(OnInvalidate) error:
		return sourceEffect
	case func() any:
		if hasCallback {
			return sourceGetter
		}
		return sourceEffect
	default:
		if reactive.IsReactive(s) {
			return sourceReactive
		}
		return sourceInvalid
	}
}

func resolve(w *watcher, source any) resolved {
	return resolvers[classify(source, w.cb != nil)](w, source)
}

func resolveRef(_ *watcher, source any) resolved {
	r := source.(reactive.Readable)
	return resolved{
		getter:       r.RefValue,
		forceTrigger: r.IsShallow(),
	}
}

func resolveReactive(_ *watcher, source any) resolved {
	return resolved{
		getter: func() any { return source },
		deep:   true,
	}
}

func resolveMulti(w *watcher, source any) resolved {
	sources := source.([]any)
	res := resolved{multi: true}
	kinds := make([]sourceKind, len(sources))
	for i, s := range sources {
		switch {
		case reactive.IsRef(s):
			kinds[i] = sourceRef
		case reactive.IsReactive(s):
			kinds[i] = sourceReactive
			res.forceTrigger = true
		default:
			if _, ok := s.(func() any); ok {
				kinds[i] = sourceGetter
				continue
			}
			kinds[i] = sourceInvalid
			w.warnInvalidSource(s)
		}
	}

	res.getter = func() any {
		values := make([]any, len(sources))
		for i, s := range sources {
			switch kinds[i] {
			case sourceRef:
				values[i] = s.(reactive.Readable).RefValue()
			case sourceReactive:
				values[i] = Traverse(s)
			case sourceGetter:
				values[i] = w.callGetter(s.(func() any))
			}
		}
		return values
	}
	return res
}

func resolveGetter(w *watcher, source any) resolved {
	fn := source.(func() any)
	return resolved{getter: func() any { return w.callGetter(fn) }}
}

func resolveEffect(w *watcher, source any) resolved {
	var fn func(OnInvalidate) error
	switch s := source.(type) {
	case EffectFunc:
		fn = s
	case func(OnInvalidate) error:
		fn = s
	case func() any:
		fn = func(OnInvalidate) error {
			s()
			return nil
		}
	}
	return resolved{getter: func() any {
		if w.owner != nil && w.owner.IsUnmounted() {
			return nil
		}
		w.runCleanup()
		w.rt.Report.CallErr(w.owner, diag.WatchCallback, func() error {
			return fn(w.onInvalidate)
		})
		return nil
	}}
}

func resolveInvalid(w *watcher, source any) resolved {
	w.warnInvalidSource(source)
	return resolved{getter: func() any { return nil }}
}

func (w *watcher) warnInvalidSource(s any) {
	typ := fmt.Sprintf("%T", s)
	w.rt.Report.WarnOnce("invalid-watch-source:"+typ,
		"invalid watch source: a watch source can only be a getter/effect function, a ref, a reactive object, or a slice of these",
		diag.Str("type", typ),
	)
}
