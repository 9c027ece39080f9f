// Package trackstate holds the currently-loaded match content and notifies
// subscribers when it changes. The Smart Restart Machine
// treats a transition as the "lobby detected" signal, since the server
// reloads a track between races.
package trackstate

import (
	"log"
	"sync"
	"time"

	"github.com/raceserver/controller/internal/clock"
	"github.com/raceserver/controller/internal/logpipe"
)

// Changed is published to subscribers when the loaded track transitions.
type Changed struct {
	TrackID string
	At      time.Time
}

// Subscriber receives Changed notices. Panics are recovered and logged so
// one misbehaving subscriber can't disrupt the tracker or its peers.
type Subscriber func(Changed)

// Tracker holds the nullable current track id and an append-only
// subscriber registry.
type Tracker struct {
	mu      sync.Mutex
	clock   clock.Clock
	current *string
	subs    []Subscriber
}

// New returns an empty Tracker. c may be nil to use the real clock.
func New(c clock.Clock) *Tracker {
	if c == nil {
		c = clock.Real{}
	}
	return &Tracker{clock: c}
}

// Attach subscribes the tracker to TrackLoaded events on bus.
func (t *Tracker) Attach(bus *logpipe.Bus) {
	bus.Subscribe(logpipe.TopicTrackLoaded, func(payload any) {
		if ev, ok := payload.(logpipe.TrackLoadedEvent); ok {
			t.onTrackLoaded(ev.TrackID)
		}
	})
}

// Subscribe registers fn to receive every future Changed notice.
func (t *Tracker) Subscribe(fn Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, fn)
}

// Current returns the currently-loaded track id, or "" if none observed yet.
func (t *Tracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return ""
	}
	return *t.current
}

func (t *Tracker) onTrackLoaded(id string) {
	t.mu.Lock()
	t.current = &id
	now := t.clock.Now()
	subs := append([]Subscriber(nil), t.subs...)
	t.mu.Unlock()

	notice := Changed{TrackID: id, At: now}
	for _, fn := range subs {
		notifySafely(fn, notice)
	}
}

func notifySafely(fn Subscriber, notice Changed) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[trackstate] subscriber panic: %v", r)
		}
	}()
	fn(notice)
}
