package watch

import (
	"reflect"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/delaneyj/tickwatch/reactive"
)

type rawMarker interface {
	IsRaw() bool
}

// identity names a node reachable more than once: its type, where it lives and,
// for slices, how much of the backing array it covers.
type identity struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

type traverser struct {
	seen mapset.Set[identity]
}

// Traverse reads everything reachable from v so that a running effect tracks all of
// it, and returns v. Refs, reactive objects and lists, and plain Go pointers,
// slices, arrays, maps and exported struct fields are followed. Each node is
// visited once, so cycles terminate. Objects marked raw are not entered.
func Traverse(v any) any {
	t := traverser{seen: mapset.NewThreadUnsafeSet[identity]()}
	t.walk(v)
	return v
}

func (t *traverser) walk(v any) {
	if v == nil {
		return
	}
	if r, ok := v.(rawMarker); ok && r.IsRaw() {
		return
	}

	switch x := v.(type) {
	case *reactive.Object:
		if !t.visit(reflect.ValueOf(x)) {
			return
		}
		for _, k := range x.Keys() {
			t.walk(x.Get(k))
		}
	case *reactive.List:
		if !t.visit(reflect.ValueOf(x)) {
			return
		}
		for _, item := range x.Values() {
			t.walk(item)
		}
	case reactive.Readable:
		if !t.visit(reflect.ValueOf(x)) {
			return
		}
		t.walk(x.RefValue())
	default:
		t.walkValue(reflect.ValueOf(v))
	}
}

func (t *traverser) walkValue(rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return
		}
		if rv.Kind() == reflect.Pointer && !t.visit(rv) {
			return
		}
		t.walkElem(rv.Elem())
	case reflect.Slice:
		if rv.IsNil() || !t.visit(rv) {
			return
		}
		for i := range rv.Len() {
			t.walkElem(rv.Index(i))
		}
	case reflect.Array:
		for i := range rv.Len() {
			t.walkElem(rv.Index(i))
		}
	case reflect.Map:
		if rv.IsNil() || !t.visit(rv) {
			return
		}
		iter := rv.MapRange()
		for iter.Next() {
			t.walkElem(iter.Value())
		}
	case reflect.Struct:
		for i := range rv.NumField() {
			t.walkElem(rv.Field(i))
		}
	}
}

func (t *traverser) walkElem(rv reflect.Value) {
	if !rv.IsValid() || !rv.CanInterface() {
		return
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Array, reflect.Struct:
		t.walk(rv.Interface())
	}
}

// visit records rv's identity and reports whether it was new. Values without one
// are always walked.
func (t *traverser) visit(rv reflect.Value) bool {
	id := identity{typ: rv.Type()}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		id.ptr = rv.Pointer()
	case reflect.Slice:
		id.ptr = rv.Pointer()
		id.n = rv.Len()
	default:
		return true
	}
	return t.seen.Add(id)
}
