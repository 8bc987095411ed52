// Package calendar provides timezone-correct civil-date windows. A civil
// date plus a named timezone maps to the UTC instant range [start, end) for
// that local day, including days shortened or stretched by DST transitions.
package calendar

import (
	"fmt"
	"time"
)

const civilDateLayout = "2006-01-02"

// DayWindow returns the half-open UTC instant range [start, end) covering
// the civil date in loc. time.Date normalizes the day+1 boundary, so DST
// transition days come out 23 or 25 hours long as appropriate.
func DayWindow(civilDate string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	day, err := time.ParseInLocation(civilDateLayout, civilDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse civil date %q: %w", civilDate, err)
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)

	return start.UTC(), end.UTC(), nil
}

// Today returns the current civil date in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(civilDateLayout)
}

// DaysAgo returns the civil date n days before now in loc.
func DaysAgo(now time.Time, n int, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	shifted := time.Date(local.Year(), local.Month(), local.Day()-n, 0, 0, 0, 0, loc)
	return shifted.Format(civilDateLayout)
}

// DateRange returns every civil date from start to end inclusive.
func DateRange(startDate, endDate string) ([]string, error) {
	start, err := time.Parse(civilDateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", startDate, err)
	}
	end, err := time.Parse(civilDateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("parse end date %q: %w", endDate, err)
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(civilDateLayout))
	}
	return dates, nil
}
