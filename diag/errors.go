package diag

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	WatchGetter ErrorCode = iota
	WatchCallback
	WatchCleanup
	Scheduler
)

func (c ErrorCode) String() string {
	switch c {
	case WatchGetter:
		return "watcher getter"
	case WatchCallback:
		return "watcher callback"
	case WatchCleanup:
		return "watcher cleanup function"
	case Scheduler:
		return "scheduler flush"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// ErrPanic wraps values recovered from a panicking invocation.
var ErrPanic = errors.New("panic")

// Owner is whatever a job or watcher belongs to. It is only used to name things in
// diagnostics.
type Owner interface {
	Name() string
}

// OwnerName returns the owner's name or "" when there is none.
func OwnerName(o Owner) string {
	if o == nil {
		return ""
	}
	return o.Name()
}

// Error is an execution error isolated to a single invocation.
type Error struct {
	Code  ErrorCode
	Owner Owner
	Err   error
}

func (e *Error) Error() string {
	if name := OwnerName(e.Owner); name != "" {
		return fmt.Sprintf("unhandled error during execution of %s in <%s>: %v", e.Code, name, e.Err)
	}
	return fmt.Sprintf("unhandled error during execution of %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, r)
}
