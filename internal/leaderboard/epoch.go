// Package leaderboard owns the weekly competition clock: epoch boundaries,
// the rollover that pays prizes and resets the live tables, and the
// background scheduler that fires it every Monday.
package leaderboard

import (
	"time"

	"github.com/dukerupert/mealquest/internal/model"
)

// CurrentEpoch returns the scoring period containing now: the most recent
// Monday 00:00 local through the following Monday 00:00, identified by the
// ISO week of its start.
func CurrentEpoch(now time.Time) model.WeeklyEpoch {
	start := weekStart(now)
	end := start.AddDate(0, 0, 7)
	year, week := start.ISOWeek()
	return model.WeeklyEpoch{
		Week:      week,
		Year:      year,
		StartDate: start,
		EndDate:   end,
	}
}

// NextRollover returns the next Monday 00:00 local strictly after now.
func NextRollover(now time.Time) time.Time {
	return weekStart(now).AddDate(0, 0, 7)
}

// weekStart returns Monday 00:00 local of the week containing t.
func weekStart(t time.Time) time.Time {
	// time.Weekday counts Sunday as 0; shift so Monday is 0.
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -daysSinceMonday)
}
