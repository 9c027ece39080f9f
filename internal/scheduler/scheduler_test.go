package scheduler

import (
	"testing"
	"time"

	"github.com/raceserver/controller/internal/clock"
	"github.com/raceserver/controller/internal/fake"
	"github.com/raceserver/controller/internal/players"
	"github.com/raceserver/controller/internal/restart"
	"github.com/raceserver/controller/internal/schedule"
)

func waitForCompletion(t *testing.T, fc *clock.Fake, m *restart.Machine, want restart.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("restart machine did not reach state %s, got %s", want, m.State())
}

func newFixtures(t *testing.T, now time.Time) (*schedule.Store, *restart.Machine, *fake.Webhook, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(now)
	store := schedule.NewStore(t.TempDir(), fc)
	sup := fake.NewSupervisor()
	machine := &restart.Machine{Clock: fc, Supervisor: sup, Players: players.New(fc)}
	webhook := fake.NewWebhook()
	return store, machine, webhook, fc
}

func TestSweepActivatesFirstDueEventAndSendsWebhook(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store, machine, webhook, fc := newFixtures(t, now)

	if _, err := store.Replace([]schedule.Event{
		{ID: 1, Name: "earlier", StartTime: now.Add(-time.Minute)},
		{ID: 2, Name: "later", StartTime: now.Add(2 * time.Minute)},
	}); err != nil {
		t.Fatal(err)
	}

	sched := New(store, machine, webhook, fc)
	sched.Sweep()

	waitForCompletion(t, fc, machine, restart.Idle)

	doc := store.Load()
	active := doc.ActiveEvent()
	if active == nil || active.ID != 1 {
		t.Fatalf("active event = %+v, want ID=1", active)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(webhook.Notices()) == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	notices := webhook.Notices()
	if len(notices) != 1 || notices[0].EventID != 1 {
		t.Fatalf("webhook notices = %+v, want one for event 1", notices)
	}
}

func TestSweepSkipsWhenAlreadyProcessing(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store, machine, webhook, fc := newFixtures(t, now)
	if _, err := store.Replace([]schedule.Event{
		{ID: 1, Name: "ready", StartTime: now},
	}); err != nil {
		t.Fatal(err)
	}

	sched := New(store, machine, webhook, fc)
	sched.mu.Lock()
	sched.processing = true
	sched.mu.Unlock()

	sched.Sweep()

	doc := store.Load()
	if doc.ActiveEvent() != nil {
		t.Fatal("Sweep() must not activate anything while processing is already set")
	}
}

func TestSweepWithNoDueEventsIsNoop(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store, machine, webhook, fc := newFixtures(t, now)
	if _, err := store.Replace([]schedule.Event{
		{ID: 1, Name: "far", StartTime: now.Add(time.Hour)},
	}); err != nil {
		t.Fatal(err)
	}

	sched := New(store, machine, webhook, fc)
	sched.Sweep()

	if machine.State() != restart.Idle {
		t.Fatalf("restart machine state = %s, want idle (nothing due)", machine.State())
	}
}

func TestActivateNowBypassesDueWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store, machine, webhook, fc := newFixtures(t, now)
	if _, err := store.Replace([]schedule.Event{
		{ID: 9, Name: "manual", StartTime: now.Add(2 * time.Hour)},
	}); err != nil {
		t.Fatal(err)
	}

	sched := New(store, machine, webhook, fc)
	if err := sched.ActivateNow(9); err != nil {
		t.Fatalf("ActivateNow() error = %v", err)
	}
	waitForCompletion(t, fc, machine, restart.Idle)

	doc := store.Load()
	if doc.ActiveEvent() == nil || doc.ActiveEvent().ID != 9 {
		t.Fatalf("active event = %+v, want ID=9", doc.ActiveEvent())
	}
}

func TestActivateNowUnknownEventReturnsNotFound(t *testing.T) {
	store, machine, webhook, fc := newFixtures(t, time.Now())
	sched := New(store, machine, webhook, fc)

	if err := sched.ActivateNow(404); err == nil {
		t.Fatal("ActivateNow() with unknown id error = nil, want NotFound")
	}
}

func TestOnActivatedReschedulesRecurringEventAndDecrementsOccurrences(t *testing.T) {
	now := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC) // a Monday
	store, machine, webhook, fc := newFixtures(t, now)

	occurrences := 3
	if _, err := store.Replace([]schedule.Event{
		{
			ID: 4, Name: "daily", StartTime: now,
			RecurringPattern: &schedule.RecurringPattern{
				Type:        schedule.Daily,
				Time:        schedule.TimeOfDay{Hour: 18},
				Occurrences: &occurrences,
			},
		},
	}); err != nil {
		t.Fatal(err)
	}

	sched := New(store, machine, webhook, fc)
	sched.Sweep()
	waitForCompletion(t, fc, machine, restart.Idle)

	doc := store.Load()
	event := doc.FindByID(4)
	if event == nil {
		t.Fatal("event 4 missing after reschedule")
	}
	if event.IsActive {
		t.Fatal("rescheduled recurring event must not stay active")
	}
	if !event.StartTime.After(now) {
		t.Fatalf("StartTime = %v, want rescheduled after %v", event.StartTime, now)
	}
	if event.RecurringPattern.Occurrences == nil || *event.RecurringPattern.Occurrences != 2 {
		t.Fatalf("Occurrences = %v, want 2", event.RecurringPattern.Occurrences)
	}
}

func TestReportMissedLogsWithoutActivating(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store, machine, webhook, fc := newFixtures(t, now)
	if _, err := store.Replace([]schedule.Event{
		{ID: 1, Name: "old", StartTime: now.Add(-time.Hour)},
	}); err != nil {
		t.Fatal(err)
	}

	sched := New(store, machine, webhook, fc)
	sched.reportMissed(store.Load())

	doc := store.Load()
	if doc.ActiveEvent() != nil {
		t.Fatal("reportMissed must never activate an event")
	}
}

func TestSummarizeCountsActiveUpcomingAndDue(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store, machine, webhook, fc := newFixtures(t, now)
	if _, err := store.Replace([]schedule.Event{
		{ID: 1, Name: "active", StartTime: now.Add(-time.Hour), IsActive: true},
		{ID: 2, Name: "due-soon", StartTime: now.Add(time.Minute)},
		{ID: 3, Name: "later", StartTime: now.Add(time.Hour)},
	}); err != nil {
		t.Fatal(err)
	}

	sched := New(store, machine, webhook, fc)
	summary := sched.Summarize()

	if summary.Total != 3 || summary.Active != 1 || summary.Due != 1 || summary.Upcoming != 1 {
		t.Fatalf("Summarize() = %+v, want Total=3 Active=1 Due=1 Upcoming=1", summary)
	}
}

func TestLookupReturnsNotFoundForUnknownID(t *testing.T) {
	store, machine, webhook, fc := newFixtures(t, time.Now())
	sched := New(store, machine, webhook, fc)

	if _, err := sched.Lookup(123); err == nil {
		t.Fatal("Lookup() with unknown id error = nil, want NotFound")
	}
}
