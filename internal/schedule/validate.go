package schedule

import (
	"fmt"

	"github.com/raceserver/controller/internal/ctlerr"
)

// Validate checks a candidate event list against the replace-operation
// rules: id > 0, non-empty name, non-default startTime, each track
// non-empty, and Weekly patterns carrying at least one day. It returns a
// ctlerr Validation error enumerating every violation, or nil.
func Validate(events []Event) error {
	var causes []string
	seen := make(map[int]bool, len(events))

	for i, e := range events {
		if e.ID <= 0 {
			causes = append(causes, fmt.Sprintf("event[%d]: id must be > 0", i))
		} else if seen[e.ID] {
			causes = append(causes, fmt.Sprintf("event[%d]: duplicate id %d", i, e.ID))
		} else {
			seen[e.ID] = true
		}
		if e.Name == "" {
			causes = append(causes, fmt.Sprintf("event[%d]: name must not be empty", i))
		}
		if e.StartTime.IsZero() {
			causes = append(causes, fmt.Sprintf("event[%d]: startTime must not be the zero value", i))
		}
		for j, tr := range e.Tracks {
			if tr.Track == "" {
				causes = append(causes, fmt.Sprintf("event[%d].tracks[%d]: track must not be empty", i, j))
			}
		}
		if p := e.RecurringPattern; p != nil && p.Type == Weekly && len(p.Days) == 0 {
			causes = append(causes, fmt.Sprintf("event[%d]: weekly recurring pattern requires at least one day", i))
		}
	}

	if len(causes) > 0 {
		return ctlerr.NewValidation("invalid schedule", causes)
	}
	return nil
}

// normalizeInvariants keeps only the first IsActive=true encountered and
// clears the rest, and normalizes every StartTime to UTC. It mutates
// events in place.
func normalizeInvariants(events []Event) {
	activeSeen := false
	for i := range events {
		if !events[i].StartTime.IsZero() {
			events[i].StartTime = events[i].StartTime.UTC()
		}
		if events[i].IsActive {
			if activeSeen {
				events[i].IsActive = false
			}
			activeSeen = true
		}
	}
}
