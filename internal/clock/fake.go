package clock

import (
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for deterministic tests. Zero value is
// not usable; construct with NewFake.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	timers  []*fakeTimer
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d, firing any ticker or timer whose
// deadline has passed. Firing is synchronous in the calling goroutine's
// order of registration.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.now = target
	tickers := append([]*fakeTicker(nil), f.tickers...)
	timers := append([]*fakeTimer(nil), f.timers...)
	f.mu.Unlock()

	for _, t := range tickers {
		t.maybeFire(target)
	}
	for _, t := range timers {
		t.maybeFire(target)
	}
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{
		clock:    f,
		interval: d,
		ch:       make(chan time.Time, 1),
		next:     f.Now().Add(d),
	}
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.mu.Unlock()
	return t
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{
		clock: f,
		fn:    fn,
		next:  f.Now().Add(d),
		live:  true,
	}
	f.mu.Lock()
	f.timers = append(f.timers, t)
	f.mu.Unlock()
	return t
}

func (f *Fake) Sleep(d time.Duration) { f.Advance(d) }

type fakeTicker struct {
	mu       sync.Mutex
	clock    *Fake
	interval time.Duration
	ch       chan time.Time
	next     time.Time
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) maybeFire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.stopped && !now.Before(t.next) {
		select {
		case t.ch <- t.next:
		default:
		}
		t.next = t.next.Add(t.interval)
	}
}

type fakeTimer struct {
	mu    sync.Mutex
	clock *Fake
	fn    func()
	next  time.Time
	live  bool
	fired bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.live && !t.fired
	t.live = false
	return was
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.live && !t.fired
	t.live = true
	t.fired = false
	t.next = t.clock.Now().Add(d)
	return was
}

func (t *fakeTimer) maybeFire(now time.Time) {
	t.mu.Lock()
	if !t.live || t.fired || now.Before(t.next) {
		t.mu.Unlock()
		return
	}
	t.fired = true
	fn := t.fn
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}
