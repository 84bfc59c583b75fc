package watch

import "github.com/delaneyj/tickwatch/reactive"

// Flush selects when a triggered watcher runs.
type Flush int

const (
	// FlushPre runs before the main queue of the next flush. It is the default.
	FlushPre Flush = iota
	// FlushPost runs after the main queue of the flush.
	FlushPost
	// FlushSync runs inside the write that triggered it.
	FlushSync
)

func (f Flush) String() string {
	switch f {
	case FlushPre:
		return "pre"
	case FlushPost:
		return "post"
	case FlushSync:
		return "sync"
	default:
		return "unknown"
	}
}

type options struct {
	immediate    bool
	immediateSet bool
	deep         bool
	deepSet      bool
	flush        Flush
	onTrack      func(reactive.DebuggerEvent)
	onTrigger    func(reactive.DebuggerEvent)
	owner        Owner
}

type Option func(*options)

// Immediate calls the callback once at registration with a nil old value.
func Immediate() Option {
	return func(o *options) {
		o.immediate = true
		o.immediateSet = true
	}
}

// Deep reads the whole value returned by the source so nested changes trigger too.
func Deep() Option {
	return func(o *options) {
		o.deep = true
		o.deepSet = true
	}
}

func WithFlush(f Flush) Option {
	return func(o *options) { o.flush = f }
}

func OnTrack(fn func(reactive.DebuggerEvent)) Option {
	return func(o *options) { o.onTrack = fn }
}

func OnTrigger(fn func(reactive.DebuggerEvent)) Option {
	return func(o *options) { o.onTrigger = fn }
}

// WithOwner binds the watcher to an owner. It is stopped when the owner unmounts and
// its errors are reported against it.
func WithOwner(owner Owner) Option {
	return func(o *options) { o.owner = owner }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	switch o.flush {
	case FlushPre, FlushPost, FlushSync:
	default:
		o.flush = FlushPre
	}
	return o
}
