// Package clock provides the monotonic-in-practice wall clock the store
// uses for expiry comparisons. It exists as its own package so tests can
// substitute a fake Source without reaching into store internals.
package clock

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Source yields whole seconds since the Unix epoch.
type Source interface {
	NowSeconds() (int64, error)
}

// ErrBeforeEpoch is returned when the system clock reports a time before
// the Unix epoch, which the store treats as a fatal clock failure for the
// operation in progress.
var ErrBeforeEpoch = fmt.Errorf("clock: system time is before the Unix epoch")

// System is the real clock, backed by time.Now.
type System struct{}

// NowSeconds returns the current whole-second Unix timestamp.
func (System) NowSeconds() (int64, error) {
	now := time.Now().Unix()
	if now < 0 {
		return 0, ErrBeforeEpoch
	}
	return now, nil
}

// Fixed is a deterministic clock for tests, advanced explicitly by the
// caller rather than by wall-clock time. Its methods are safe to call
// concurrently, since tests advance it from the main goroutine while a
// store's background sweeper reads it at the same time.
type Fixed struct {
	seconds atomic.Int64
}

// NewFixed creates a Fixed clock starting at the given Unix second.
func NewFixed(seconds int64) *Fixed {
	f := &Fixed{}
	f.seconds.Store(seconds)
	return f
}

// NowSeconds implements Source.
func (f *Fixed) NowSeconds() (int64, error) {
	seconds := f.seconds.Load()
	if seconds < 0 {
		return 0, ErrBeforeEpoch
	}
	return seconds, nil
}

// Advance moves the fixed clock forward by delta seconds (delta may be
// negative to rewind, though rewinding before the epoch will start
// surfacing ErrBeforeEpoch).
func (f *Fixed) Advance(delta int64) {
	f.seconds.Add(delta)
}

// Set pins the fixed clock to an exact Unix second.
func (f *Fixed) Set(seconds int64) {
	f.seconds.Store(seconds)
}
