// Package recurrence computes the next instance of a Daily or Weekly
// recurring pattern.
package recurrence

import (
	"sort"
	"time"

	"github.com/raceserver/controller/internal/schedule"
)

// NextInstance returns the next UTC instant strictly after from at which
// pattern fires, or ok=false if the pattern has expired (occurrences <= 0).
// Occurrence-budget decrementing is the scheduler's responsibility, not
// this engine's.
func NextInstance(pattern *schedule.RecurringPattern, from time.Time) (next time.Time, ok bool) {
	if pattern == nil || pattern.Expired() {
		return time.Time{}, false
	}
	from = from.UTC()

	switch pattern.Type {
	case schedule.Daily:
		return nextDaily(pattern, from), true
	case schedule.Weekly:
		return nextWeekly(pattern, from), true
	default:
		return time.Time{}, false
	}
}

func nextDaily(pattern *schedule.RecurringPattern, from time.Time) time.Time {
	candidate := pattern.Time.OnDate(from)
	if !candidate.After(from) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func nextWeekly(pattern *schedule.RecurringPattern, from time.Time) time.Time {
	days := append([]int(nil), pattern.Days...)
	sort.Ints(days)
	if len(days) == 0 {
		return time.Time{}
	}

	today := int(from.Weekday())
	for _, d := range days {
		if d > today {
			return dateForWeekday(from, d, pattern.Time)
		}
		if d == today {
			candidate := pattern.Time.OnDate(from)
			if candidate.After(from) {
				return candidate
			}
		}
	}

	// No day this week qualifies; wrap to the smallest day next week.
	return dateForWeekday(from, days[0]+7, pattern.Time)
}

// dateForWeekday returns the instant at pattern.Time on the day that is
// targetWeekday (possibly >6, meaning "next week") relative to from's week.
func dateForWeekday(from time.Time, targetWeekday int, tod schedule.TimeOfDay) time.Time {
	delta := targetWeekday - int(from.Weekday())
	day := from.AddDate(0, 0, delta)
	return tod.OnDate(day)
}
