package players

import (
	"testing"
	"time"

	"github.com/raceserver/controller/internal/clock"
	"github.com/raceserver/controller/internal/logpipe"
)

func TestJoinThenLeaveTracksOnlineFlag(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := logpipe.NewBus()
	tracker := New(fc)
	tracker.Attach(bus)

	bus.Publish(logpipe.TopicJoin, logpipe.PlayerEvent{Name: "alice", IsBot: false})
	online, total := tracker.Count()
	if online != 1 || total != 1 {
		t.Fatalf("Count() after join = (%d, %d), want (1, 1)", online, total)
	}

	bus.Publish(logpipe.TopicLeave, logpipe.PlayerEvent{Name: "alice", IsBot: false})
	online, total = tracker.Count()
	if online != 0 || total != 1 {
		t.Fatalf("Count() after leave = (%d, %d), want (0, 1)", online, total)
	}

	snap := tracker.Snapshot()
	if len(snap) != 0 {
		t.Fatalf("Snapshot() after leave = %+v, want empty (offline entries excluded)", snap)
	}
}

func TestBotsExcludedFromCounts(t *testing.T) {
	fc := clock.NewFake(time.Now())
	bus := logpipe.NewBus()
	tracker := New(fc)
	tracker.Attach(bus)

	bus.Publish(logpipe.TopicJoin, logpipe.PlayerEvent{Name: "alice", IsBot: false})
	bus.Publish(logpipe.TopicJoin, logpipe.PlayerEvent{Name: "bot1", IsBot: true})
	bus.Publish(logpipe.TopicJoin, logpipe.PlayerEvent{Name: "bot2", IsBot: true})

	online, total := tracker.Count()
	if online != 1 || total != 1 {
		t.Fatalf("Count() = (%d, %d), want (1, 1) with bots excluded", online, total)
	}
	if online > total {
		t.Fatalf("online_humans (%d) > total_humans (%d)", online, total)
	}
}

func TestKickMarksOffline(t *testing.T) {
	fc := clock.NewFake(time.Now())
	bus := logpipe.NewBus()
	tracker := New(fc)
	tracker.Attach(bus)

	bus.Publish(logpipe.TopicJoin, logpipe.PlayerEvent{Name: "alice"})
	bus.Publish(logpipe.TopicKick, logpipe.PlayerEvent{Name: "alice"})

	online, _ := tracker.Count()
	if online != 0 {
		t.Fatalf("Count() online = %d, want 0 after kick", online)
	}
}

func TestLeaveUnknownPlayerIsNoop(t *testing.T) {
	bus := logpipe.NewBus()
	tracker := New(clock.NewFake(time.Now()))
	tracker.Attach(bus)

	bus.Publish(logpipe.TopicLeave, logpipe.PlayerEvent{Name: "ghost"})

	online, total := tracker.Count()
	if online != 0 || total != 0 {
		t.Fatalf("Count() = (%d, %d), want (0, 0)", online, total)
	}
}

func TestResetClearsAllEntries(t *testing.T) {
	bus := logpipe.NewBus()
	tracker := New(clock.NewFake(time.Now()))
	tracker.Attach(bus)

	bus.Publish(logpipe.TopicJoin, logpipe.PlayerEvent{Name: "alice"})
	tracker.Reset()

	online, total := tracker.Count()
	if online != 0 || total != 0 {
		t.Fatalf("Count() after Reset() = (%d, %d), want (0, 0)", online, total)
	}
}

func TestSnapshotOrdersByJoinedAtWhenNoSlots(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := logpipe.NewBus()
	tracker := New(fc)
	tracker.Attach(bus)

	bus.Publish(logpipe.TopicJoin, logpipe.PlayerEvent{Name: "first"})
	fc.Advance(time.Second)
	bus.Publish(logpipe.TopicJoin, logpipe.PlayerEvent{Name: "second"})

	snap := tracker.Snapshot()
	if len(snap) != 2 || snap[0].Name != "first" || snap[1].Name != "second" {
		t.Fatalf("Snapshot() = %+v, want [first, second] ordered by JoinedAt", snap)
	}
}
