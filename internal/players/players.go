// Package players maintains the set of connected participants derived from
// parsed log events. It distinguishes humans from bots and
// answers player-count and snapshot queries the Smart Restart Machine uses
// to decide whether a restart needs to wait for a safe moment.
package players

import (
	"sort"
	"sync"
	"time"

	"github.com/raceserver/controller/internal/clock"
	"github.com/raceserver/controller/internal/logpipe"
)

// Participant is a single tracked connected entity, keyed by Name.
type Participant struct {
	Name       string
	IsBot      bool
	IsOnline   bool
	JoinedAt   time.Time
	LastSeenAt time.Time
	Slot       *int
}

// Tracker maintains name -> Participant, fed by Join/Leave/Kick events on a
// logpipe.Bus. Entries survive a departure (IsOnline=false) and are erased
// only by Reset, tied to the server process stopping.
type Tracker struct {
	mu     sync.Mutex
	clock  clock.Clock
	byName map[string]*Participant
}

// New returns an empty Tracker. c may be nil to use the real clock.
func New(c clock.Clock) *Tracker {
	if c == nil {
		c = clock.Real{}
	}
	return &Tracker{clock: c, byName: make(map[string]*Participant)}
}

// Attach subscribes the tracker to Join/Leave/Kick topics on bus.
func (t *Tracker) Attach(bus *logpipe.Bus) {
	bus.Subscribe(logpipe.TopicJoin, func(payload any) {
		if ev, ok := payload.(logpipe.PlayerEvent); ok {
			t.onJoin(ev.Name, ev.IsBot)
		}
	})
	bus.Subscribe(logpipe.TopicLeave, func(payload any) {
		if ev, ok := payload.(logpipe.PlayerEvent); ok {
			t.onDepart(ev.Name)
		}
	})
	bus.Subscribe(logpipe.TopicKick, func(payload any) {
		if ev, ok := payload.(logpipe.PlayerEvent); ok {
			t.onDepart(ev.Name)
		}
	})
}

func (t *Tracker) onJoin(name string, isBot bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	p, ok := t.byName[name]
	if !ok {
		t.byName[name] = &Participant{
			Name:       name,
			IsBot:      isBot,
			IsOnline:   true,
			JoinedAt:   now,
			LastSeenAt: now,
		}
		return
	}
	p.IsOnline = true
	p.IsBot = isBot
	p.LastSeenAt = now
}

func (t *Tracker) onDepart(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.byName[name]
	if !ok {
		return
	}
	p.IsOnline = false
	p.LastSeenAt = t.clock.Now()
}

// Snapshot returns currently-online participants ordered by Slot (absent
// slots last) then by JoinedAt.
func (t *Tracker) Snapshot() []Participant {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Participant
	for _, p := range t.byName {
		if p.IsOnline {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Slot == nil) != (b.Slot == nil) {
			return a.Slot != nil
		}
		if a.Slot != nil && b.Slot != nil && *a.Slot != *b.Slot {
			return *a.Slot < *b.Slot
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})
	return out
}

// Count returns (onlineHumans, totalHumans). Bots are excluded because the
// restart machine uses these counts to decide whether to announce to real
// players.
func (t *Tracker) Count() (onlineHumans, totalHumans int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range t.byName {
		if p.IsBot {
			continue
		}
		totalHumans++
		if p.IsOnline {
			onlineHumans++
		}
	}
	return onlineHumans, totalHumans
}

// Reset clears all tracked participants, tied to the server process
// stopping.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byName = make(map[string]*Participant)
}
