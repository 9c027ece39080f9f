// Package scheduler implements the periodic sweep that detects due events
// and orchestrates their activation through the Smart Restart Machine,
// plus the read-only query operations the network-facing API needs:
// current active event, upcoming/due lists, summary counts, lookup by id,
// and manual activation.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/raceserver/controller/internal/clock"
	"github.com/raceserver/controller/internal/ctlerr"
	"github.com/raceserver/controller/internal/ports"
	"github.com/raceserver/controller/internal/recurrence"
	"github.com/raceserver/controller/internal/restart"
	"github.com/raceserver/controller/internal/schedule"
)

// defaultLeadWindow is how far ahead of "now" an event is considered due
// -- it gives the restart machine's Warning phase time to finish exactly
// at the scheduled minute.
const defaultLeadWindow = 5 * time.Minute

// defaultMissedWindow is how far in the past a non-active event must be at
// startup before it is reported as missed (but never auto-activated).
const defaultMissedWindow = 5 * time.Minute

// defaultSweepInterval is the cadence of the periodic sweep.
const defaultSweepInterval = 30 * time.Second

// Scheduler ties the schedule store to the restart machine. The periodic
// sweep and manual activation both serialize through a single
// "processing" flag so at most one restart orchestration is outstanding.
type Scheduler struct {
	Store   *schedule.Store
	Restart *restart.Machine
	Webhook ports.WebhookSender
	Clock   clock.Clock

	// SweepInterval, LeadWindow, and MissedWindow override the default
	// sweep cadence and due/missed windows when set before Start.
	SweepInterval time.Duration
	LeadWindow    time.Duration
	MissedWindow  time.Duration

	cron *cron.Cron

	mu         sync.Mutex
	processing bool
}

// New returns a Scheduler wired to store, restartMachine, and webhook. c
// may be nil to use the real clock.
func New(store *schedule.Store, restartMachine *restart.Machine, webhook ports.WebhookSender, c clock.Clock) *Scheduler {
	if c == nil {
		c = clock.Real{}
	}
	return &Scheduler{Store: store, Restart: restartMachine, Webhook: webhook, Clock: c}
}

// Start loads the schedule, logs a missed-events report for any non-active
// event more than 5 minutes past due (without activating it), and begins
// the periodic sweep.
func (s *Scheduler) Start() error {
	doc := s.Store.Load()
	s.reportMissed(doc)

	// "@every" needs no calendar semantics, just a fixed interval.
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@every "+s.sweepInterval().String(), s.Sweep); err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the periodic sweep and waits for any in-flight sweep to
// finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) sweepInterval() time.Duration {
	if s.SweepInterval > 0 {
		return s.SweepInterval
	}
	return defaultSweepInterval
}

func (s *Scheduler) leadWindow() time.Duration {
	if s.LeadWindow > 0 {
		return s.LeadWindow
	}
	return defaultLeadWindow
}

func (s *Scheduler) missedWindow() time.Duration {
	if s.MissedWindow > 0 {
		return s.MissedWindow
	}
	return defaultMissedWindow
}

func (s *Scheduler) reportMissed(doc schedule.Schedule) {
	now := s.Clock.Now()
	cutoff := now.Add(-s.missedWindow())
	for _, e := range doc.Events {
		if e.IsActive {
			continue
		}
		if e.StartTime.Before(cutoff) {
			log.Printf("[scheduler] missed event %d (%s): scheduled for %s", e.ID, e.Name, e.StartTime)
		}
	}
}

// Sweep performs one sweep iteration. It is exported so callers (including
// tests) can drive it directly instead of waiting on the cron interval.
func (s *Scheduler) Sweep() {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	doc := s.Store.Load()
	now := s.Clock.Now()
	deadline := now.Add(s.leadWindow())

	due := doc.DueEvents(deadline)
	if len(due) == 0 {
		if upcoming := doc.UpcomingEvents(deadline); len(upcoming) > 0 {
			log.Printf("[scheduler] next event %d (%s) due in %s", upcoming[0].ID, upcoming[0].Name, upcoming[0].StartTime.Sub(now))
		}
		return
	}

	// First-scheduled-wins: among simultaneously due events, the earliest
	// StartTime is activated; the rest wait for the following sweep. No
	// preemption of an in-progress Warning phase is attempted.
	s.activate(due[0])
}

// ActivateNow triggers an operator-initiated activation of the event with
// the given id, bypassing the due-window check. It always re-applies the
// event's server config and tracks, the same as an automatic activation.
func (s *Scheduler) ActivateNow(id int) error {
	doc := s.Store.Load()
	event := doc.FindByID(id)
	if event == nil {
		return ctlerr.NewNotFound(fmt.Sprintf("event %d not found", id))
	}
	return s.activate(*event)
}

func (s *Scheduler) activate(event schedule.Event) error {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return ctlerr.NewConflict("a restart is already in progress")
	}
	s.processing = true
	s.mu.Unlock()

	err := s.Restart.Initiate(event, s.onActivated)
	if err != nil {
		log.Printf("[scheduler] initiating restart for event %d: %v", event.ID, err)
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
	}
	return err
}

// onActivated is the Restart Machine's completion callback: it flips
// is_active, fires the webhook, and reschedules a recurring pattern.
func (s *Scheduler) onActivated(event schedule.Event) {
	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
	}()

	doc := s.Store.Load()
	for i := range doc.Events {
		doc.Events[i].IsActive = doc.Events[i].ID == event.ID
	}
	if err := s.Store.Save(doc); err != nil {
		// The restart already happened on the server; a stuck processing
		// flag is worse than a missed active flag.
		log.Printf("[scheduler] saving activation for event %d: %v", event.ID, err)
		return
	}

	s.sendWebhook(event)

	target := doc.FindByID(event.ID)
	if target == nil || target.RecurringPattern == nil {
		return
	}
	next, ok := recurrence.NextInstance(target.RecurringPattern, s.Clock.Now())
	if !ok {
		return
	}
	target.StartTime = next
	target.IsActive = false
	if target.RecurringPattern.Occurrences != nil {
		n := *target.RecurringPattern.Occurrences - 1
		target.RecurringPattern.Occurrences = &n
	}
	if err := s.Store.Save(doc); err != nil {
		log.Printf("[scheduler] rescheduling recurring event %d: %v", event.ID, err)
	}
}

func (s *Scheduler) sendWebhook(event schedule.Event) {
	if s.Webhook == nil {
		return
	}
	notice := ports.ActivationNotice{
		EventID:   event.ID,
		EventName: event.Name,
		Timestamp: s.Clock.Now().UTC(),
	}
	go func() {
		if err := s.Webhook.SendActivation(context.Background(), notice); err != nil {
			log.Printf("[scheduler] webhook delivery for event %d: %v", event.ID, err)
		}
	}()
}

// UpcomingEntry pairs an event with a human-readable time-until-start, for
// the upcoming-events query.
type UpcomingEntry struct {
	Event    schedule.Event
	StartsIn string
}

// Summary is the schedule's summary-counts query result.
type Summary struct {
	Total       int
	Active      int
	Upcoming    int
	Due         int
	LastUpdated time.Time
}

// CurrentActive returns the schedule's active event, if any.
func (s *Scheduler) CurrentActive() (schedule.Event, bool) {
	doc := s.Store.Load()
	if e := doc.ActiveEvent(); e != nil {
		return *e, true
	}
	return schedule.Event{}, false
}

// Upcoming returns non-active events due more than the lead window from
// now, each annotated with a human-readable StartsIn.
func (s *Scheduler) Upcoming() []UpcomingEntry {
	doc := s.Store.Load()
	now := s.Clock.Now()
	events := doc.UpcomingEvents(now.Add(s.leadWindow()))
	out := make([]UpcomingEntry, len(events))
	for i, e := range events {
		out[i] = UpcomingEntry{Event: e, StartsIn: e.StartTime.Sub(now).Round(time.Second).String()}
	}
	return out
}

// Due returns the schedule's current due set, ascending by StartTime.
func (s *Scheduler) Due() []schedule.Event {
	doc := s.Store.Load()
	return doc.DueEvents(s.Clock.Now().Add(s.leadWindow()))
}

// Lookup returns the event with the given id.
func (s *Scheduler) Lookup(id int) (schedule.Event, error) {
	doc := s.Store.Load()
	if e := doc.FindByID(id); e != nil {
		return *e, nil
	}
	return schedule.Event{}, ctlerr.NewNotFound(fmt.Sprintf("event %d not found", id))
}

// Replace validates and persists a new event list (the schedule-replace
// operation).
func (s *Scheduler) Replace(events []schedule.Event) (schedule.Schedule, error) {
	return s.Store.Replace(events)
}

// Summarize computes the summary-counts query.
func (s *Scheduler) Summarize() Summary {
	doc := s.Store.Load()
	now := s.Clock.Now()
	deadline := now.Add(s.leadWindow())

	summary := Summary{Total: len(doc.Events), LastUpdated: doc.LastUpdated}
	if doc.ActiveEvent() != nil {
		summary.Active = 1
	}
	summary.Upcoming = len(doc.UpcomingEvents(deadline))
	summary.Due = len(doc.DueEvents(deadline))
	return summary
}
