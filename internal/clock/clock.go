// Package clock provides the monotonic-time and timer abstraction the
// controller depends on. Every long-lived goroutine reads "now" and
// schedules ticks through a Clock rather than calling time.Now/time.NewTicker
// directly, so tests can inject a fake and advance time deterministically.
package clock

import "time"

// Clock is the injectable time source used throughout the core.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a Ticker that fires every d until stopped.
	NewTicker(d time.Duration) Ticker

	// AfterFunc schedules f to run once after d elapses. The returned
	// Timer can be stopped or reset before it fires.
	AfterFunc(d time.Duration, f func()) Timer

	// Sleep blocks for d or until ctx-like cancellation is handled by the
	// caller; real implementations use time.Sleep.
	Sleep(d time.Duration)
}

// Ticker mirrors the subset of time.Ticker the core needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer mirrors the subset of time.Timer the core needs.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Real is the production Clock backed by the standard library.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return &realTimer{t: time.AfterFunc(d, f)}
}

func (Real) Sleep(d time.Duration) { time.Sleep(d) }

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

type realTimer struct{ t *time.Timer }

func (r *realTimer) Stop() bool                 { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
