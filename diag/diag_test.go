package diag_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaneyj/tickwatch/diag"
)

type owner string

func (o owner) Name() string { return string(o) }

// should log unhandled errors with their code and owner
func TestHandleLogs(t *testing.T) {
	var buf bytes.Buffer
	r := diag.New(diag.WithLogger(zerolog.New(&buf)))

	r.Handle(errors.New("boom"), owner("Widget"), diag.WatchCleanup)
	out := buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"code":"watcher cleanup function"`)
	assert.Contains(t, out, `"owner":"Widget"`)

	buf.Reset()
	r.Handle(nil, nil, diag.Scheduler)
	assert.Empty(t, buf.String())
}

// should recover panics and route them to the handler
func TestCall(t *testing.T) {
	var got []*diag.Error
	r := diag.New(diag.WithHandler(func(err *diag.Error) { got = append(got, err) }))

	assert.True(t, r.Call(nil, diag.Scheduler, func() {}))
	assert.False(t, r.Call(owner("A"), diag.WatchGetter, func() { panic("bad") }))

	sentinel := errors.New("sentinel")
	assert.False(t, r.Call(nil, diag.WatchGetter, func() { panic(sentinel) }))

	require.Len(t, got, 2)
	assert.ErrorIs(t, got[0], diag.ErrPanic)
	assert.Equal(t, "unhandled error during execution of watcher getter in <A>: panic: bad", got[0].Error())
	assert.ErrorIs(t, got[1], sentinel)
	assert.ErrorIs(t, got[1], diag.ErrPanic)
}

// should pass results through and wrap returned errors
func TestCallValueAndErr(t *testing.T) {
	var got []*diag.Error
	r := diag.New(diag.WithHandler(func(err *diag.Error) { got = append(got, err) }))

	assert.Equal(t, 7, r.CallValue(nil, diag.WatchGetter, func() any { return 7 }))
	assert.Nil(t, r.CallValue(nil, diag.WatchGetter, func() any { panic("no value") }))

	assert.True(t, r.CallErr(nil, diag.WatchCallback, func() error { return nil }))
	assert.False(t, r.CallErr(nil, diag.WatchCallback, func() error { return errors.New("returned") }))
	require.Len(t, got, 2)
	assert.Equal(t, diag.WatchCallback, got[1].Code)
	assert.EqualError(t, got[1].Err, "returned")
}

// should survive a panicking handler
func TestHandlerPanic(t *testing.T) {
	var buf bytes.Buffer
	r := diag.New(
		diag.WithLogger(zerolog.New(&buf)),
		diag.WithHandler(func(*diag.Error) { panic("handler") }),
	)
	assert.NotPanics(t, func() {
		r.Handle(errors.New("x"), nil, diag.Scheduler)
	})
	assert.Contains(t, buf.String(), "error handler panicked")
}

// should only warn loudly in dev mode and warn once per key
func TestWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	prod := diag.New(diag.WithLogger(logger))
	prod.Warn("quiet")
	assert.Empty(t, buf.String())
	prod.Alert("loud", diag.Int("limit", 3))
	assert.Contains(t, buf.String(), `"limit":3`)

	buf.Reset()
	dev := diag.New(diag.WithLogger(logger), diag.WithDev(true))
	assert.True(t, dev.Dev())
	dev.WarnOnce("k", "first", diag.Str("source", "int"))
	dev.WarnOnce("k", "first")
	dev.WarnOnce("other", "second", diag.Err(nil), diag.Any("n", []int{1}))
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, `"first"`))
	assert.Contains(t, out, `"source":"int"`)
	assert.Contains(t, out, `"n":[1]`)
}

// should describe error codes and fall back for unknown ones
func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "watcher callback", diag.WatchCallback.String())
	assert.Equal(t, "scheduler flush", diag.Scheduler.String())
	assert.Equal(t, "code(42)", diag.ErrorCode(42).String())
	assert.Equal(t, "", diag.OwnerName(nil))
}
