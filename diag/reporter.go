package diag

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
)

// Field mutates a zerolog event.
type Field func(e *zerolog.Event)

func Str(k, v string) Field     { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field { return func(e *zerolog.Event) { e.Int(k, v) } }
func Any(k string, v any) Field { return func(e *zerolog.Event) { e.Interface(k, v) } }
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

type HandlerFunc func(err *Error)

// Reporter is the error-handling collaborator shared by the scheduler and the
// watch layer. It isolates failures to the invocation that caused them.
type Reporter struct {
	log     zerolog.Logger
	handler HandlerFunc
	dev     bool

	mu     sync.Mutex
	warned mapset.Set[uint64]
}

type Option func(*Reporter)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Reporter) { r.log = l }
}

// WithHandler replaces logging of execution errors with fn.
func WithHandler(fn HandlerFunc) Option {
	return func(r *Reporter) { r.handler = fn }
}

// WithDev makes misuse warnings visible at warn level.
func WithDev(dev bool) Option {
	return func(r *Reporter) { r.dev = dev }
}

func New(opts ...Option) *Reporter {
	r := &Reporter{
		log:    zerolog.Nop(),
		warned: mapset.NewThreadUnsafeSet[uint64](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Nop discards everything.
func Nop() *Reporter {
	return New()
}

func (r *Reporter) Logger() zerolog.Logger {
	return r.log
}

func (r *Reporter) Dev() bool {
	return r.dev
}

// Handle routes err to the configured handler, or logs it.
func (r *Reporter) Handle(err error, owner Owner, code ErrorCode) {
	if err == nil {
		return
	}
	e := &Error{Code: code, Owner: owner, Err: err}
	if r.handler != nil {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.log.Error().Err(recovered(p)).Msg("error handler panicked")
				}
			}()
			r.handler(e)
		}()
		return
	}
	ev := r.log.Error().Err(err).Str("code", code.String())
	if name := OwnerName(owner); name != "" {
		ev = ev.Str("owner", name)
	}
	ev.Msg("unhandled error")
}

// Call runs fn, reporting a panic instead of propagating it. ok is false when fn
// panicked.
func (r *Reporter) Call(owner Owner, code ErrorCode, fn func()) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.Handle(recovered(p), owner, code)
			ok = false
		}
	}()
	fn()
	return true
}

// CallValue is Call for functions producing a value. A panicking fn yields nil.
func (r *Reporter) CallValue(owner Owner, code ErrorCode, fn func() any) (v any) {
	r.Call(owner, code, func() { v = fn() })
	return v
}

// CallErr also routes a returned error.
func (r *Reporter) CallErr(owner Owner, code ErrorCode, fn func() error) bool {
	var err error
	if !r.Call(owner, code, func() { err = fn() }) {
		return false
	}
	if err != nil {
		r.Handle(err, owner, code)
		return false
	}
	return true
}

// Warn reports a misuse diagnostic. Outside dev mode it only reaches debug logs.
func (r *Reporter) Warn(msg string, fields ...Field) {
	ev := r.log.Debug()
	if r.dev {
		ev = r.log.Warn()
	}
	for _, f := range fields {
		f(ev)
	}
	ev.Msg(msg)
}

// WarnOnce is Warn deduplicated on key for the lifetime of the reporter.
func (r *Reporter) WarnOnce(key, msg string, fields ...Field) {
	fp := xxhash.Sum64String(key)
	r.mu.Lock()
	first := r.warned.Add(fp)
	r.mu.Unlock()
	if first {
		r.Warn(msg, fields...)
	}
}

// Alert is a diagnostic that is always logged at warn level.
func (r *Reporter) Alert(msg string, fields ...Field) {
	ev := r.log.Warn()
	for _, f := range fields {
		f(ev)
	}
	ev.Msg(msg)
}
