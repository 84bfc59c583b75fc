package reactive

import (
	"math"
	"reflect"
)

// HasChanged compares by identity without ever panicking. NaN equals NaN; slices,
// maps and funcs are the same only when they share storage; values of different
// dynamic types always differ.
func HasChanged(a, b any) (changed bool) {
	if a == nil || b == nil {
		return a != nil || b != nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return true
	}

	switch x := a.(type) {
	case float64:
		y := b.(float64)
		if math.IsNaN(x) && math.IsNaN(y) {
			return false
		}
	case float32:
		y := b.(float32)
		if x != x && y != y {
			return false
		}
	}

	if ta.Comparable() {
		// Structs and arrays holding uncomparable interface values panic here.
		defer func() {
			if recover() != nil {
				changed = true
			}
		}()
		return a != b
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch ta.Kind() {
	case reflect.Slice:
		return va.Pointer() != vb.Pointer() || va.Len() != vb.Len()
	case reflect.Map, reflect.Func:
		return va.Pointer() != vb.Pointer()
	}
	return true
}
