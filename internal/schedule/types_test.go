package schedule

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimeOfDayJSONRoundTrip(t *testing.T) {
	tod := TimeOfDay{Hour: 20, Minute: 5, Second: 30}
	data, err := json.Marshal(tod)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"20:05:30"` {
		t.Fatalf("unexpected marshal output: %s", data)
	}

	var got TimeOfDay
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != tod {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, tod)
	}
}

func TestDueAndUpcomingEventsSplitOnDeadline(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(5 * time.Minute)

	s := Schedule{Events: []Event{
		{ID: 1, StartTime: now.Add(3 * time.Minute)},  // due
		{ID: 2, StartTime: now.Add(10 * time.Minute)}, // upcoming
		{ID: 3, StartTime: now.Add(1 * time.Minute), IsActive: true}, // active, excluded from both
		{ID: 4, StartTime: now.Add(1 * time.Minute)},  // due, earlier than event 1
	}}

	due := s.DueEvents(deadline)
	if len(due) != 2 || due[0].ID != 4 || due[1].ID != 1 {
		t.Fatalf("unexpected due events: %+v", due)
	}

	upcoming := s.UpcomingEvents(deadline)
	if len(upcoming) != 1 || upcoming[0].ID != 2 {
		t.Fatalf("unexpected upcoming events: %+v", upcoming)
	}
}

func TestFindByIDAndActiveEvent(t *testing.T) {
	s := Schedule{Events: []Event{
		{ID: 1, Name: "A"},
		{ID: 2, Name: "B", IsActive: true},
	}}
	if e := s.FindByID(2); e == nil || e.Name != "B" {
		t.Fatalf("FindByID(2) = %+v", e)
	}
	if e := s.FindByID(99); e != nil {
		t.Fatalf("FindByID(99) should be nil, got %+v", e)
	}
	if e := s.ActiveEvent(); e == nil || e.ID != 2 {
		t.Fatalf("ActiveEvent() = %+v", e)
	}
}
